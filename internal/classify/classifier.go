package classify

import "strings"

// Category labels an ingested message for routing and prioritization.
type Category string

const (
	CategoryNotification   Category = "notification"
	CategoryActionRequired Category = "action_required"
	CategorySecurity       Category = "security"
	CategoryBillingPayment Category = "billing_payment"
	CategorySales          Category = "sales"
	CategoryInformation    Category = "information"
)

// Sender addresses matching these fragments are automated senders;
// their mail never needs action regardless of content.
var automatedSenderPatterns = []string{
	"no-reply",
	"noreply",
	"do-not-reply",
	"donotreply",
	"mailer-daemon",
	"notifications@",
	"notification@",
	"newsletter@",
	"auto-reply",
	"自動配信",
	"自動送信",
}

var actionKeywords = []string{
	"至急",
	"緊急",
	"急ぎ",
	"ご対応",
	"対応をお願い",
	"ご確認ください",
	"ご返信",
	"返信ください",
	"urgent",
	"asap",
	"action required",
	"please reply",
	"please respond",
	"response needed",
	"respond by",
}

var securityKeywords = []string{
	"ログイン",
	"パスワード",
	"認証",
	"セキュリティ",
	"不正アクセス",
	"二段階",
	"login",
	"sign-in",
	"sign in",
	"password",
	"verification code",
	"security alert",
	"reset",
	"suspicious",
}

var billingKeywords = []string{
	"請求",
	"支払",
	"領収書",
	"料金",
	"引き落とし",
	"invoice",
	"billing",
	"payment",
	"receipt",
	"subscription renew",
}

// Deadline cues gate the needs-action flag for billing mail.
var deadlineKeywords = []string{
	"期限",
	"期日",
	"までに",
	"お支払い期限",
	"deadline",
	"due",
	"overdue",
	"final notice",
}

var salesKeywords = []string{
	"セール",
	"割引",
	"キャンペーン",
	"クーポン",
	"限定オファー",
	"sale",
	"discount",
	"coupon",
	"special offer",
	"% off",
}

var informationKeywords = []string{
	"お知らせ",
	"メルマガ",
	"配信",
	"newsletter",
	"update",
	"news",
	"announcement",
	"digest",
}

// Classify maps message metadata to a category and a needs-action flag.
// First matching rule wins; matching is case-insensitive substring search
// over subject then snippet. Pure function, no I/O.
func Classify(subject, sender, snippet string) (Category, bool) {
	subject = strings.ToLower(subject)
	sender = strings.ToLower(sender)
	snippet = strings.ToLower(snippet)

	if matchesAny(sender, automatedSenderPatterns) {
		return CategoryNotification, false
	}

	if containsAny(subject, snippet, actionKeywords) {
		return CategoryActionRequired, true
	}

	if containsAny(subject, snippet, securityKeywords) {
		return CategorySecurity, true
	}

	if containsAny(subject, snippet, billingKeywords) {
		// Billing mail only needs action when a deadline cue is present.
		needsAction := containsAny(subject, snippet, deadlineKeywords)
		return CategoryBillingPayment, needsAction
	}

	if containsAny(subject, snippet, salesKeywords) {
		return CategorySales, false
	}

	if containsAny(subject, snippet, informationKeywords) {
		return CategoryInformation, false
	}

	return CategoryInformation, false
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsAny(subject, snippet string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(subject, kw) || strings.Contains(snippet, kw) {
			return true
		}
	}
	return false
}
