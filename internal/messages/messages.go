package messages

import (
	"fmt"
	"strings"

	"github.com/hmmrfll/owl-ai-backend/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func quota(n int) string {
	if n == types.UnlimitedQuota {
		return "безлимит"
	}
	return fmt.Sprintf("%d", n)
}

func ErrorDefault() string {
	return "🚫 <b>Ошибка</b>\nПопробуйте ещё раз."
}

func ErrorUnknownCommand() string {
	return "❓ <b>Команда не найдена</b>\nДоступны /start, /subscribe и /status."
}

func ErrorUnsupportedMessageType() string {
	return "🤖 <b>Я так не умею</b>\nОтправьте фото, документ или текстовый вопрос."
}

func ErrorUnsupportedDocument() string {
	return "🚫 <b>Формат не поддерживается</b>\nПринимаю документы: PDF, DOC, DOCX, TXT, RTF."
}

func ErrorAnalysisFailed() string {
	return "🚫 <b>Не удалось выполнить анализ</b>\nПопробуйте отправить ещё раз чуть позже."
}

func StartWelcome(firstName string) string {
	greeting := "👋 <b>Привет!</b>"
	if name := strings.TrimSpace(firstName); name != "" {
		greeting = fmt.Sprintf("👋 <b>Привет, %s!</b>", Escape(name))
	}
	return greeting + "\nЯ — юридический ассистент.\n\n" +
		"📷 Отправьте фото документа — проанализирую.\n" +
		"📄 Пришлите файл (PDF, DOC, DOCX, TXT, RTF) — разберу по пунктам.\n" +
		"💬 Или просто задайте вопрос текстом.\n\n" +
		"💎 Команда /subscribe откроет тарифы, /status покажет остаток лимитов."
}

func SubscriptionMenu() string {
	return "💎 <b>Тарифы</b>\nВыберите тариф, чтобы посмотреть условия:"
}

func TariffDetails(def *types.TariffDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💎 <b>Тариф «%s»</b>\n%s\n\n", Escape(def.DisplayName), Escape(def.Description))
	fmt.Fprintf(&b, "📷 Фото: <b>%s</b> в месяц\n", quota(def.MonthlyPhotos))
	fmt.Fprintf(&b, "📄 Документы: <b>%s</b> в месяц\n", quota(def.MonthlyDocs))
	fmt.Fprintf(&b, "💬 Вопросы ИИ: <b>%s</b> в месяц\n", quota(def.MonthlyAI))
	if def.PrioritySupport {
		b.WriteString("⭐ Приоритетная поддержка\n")
	}
	for _, feature := range def.Features {
		fmt.Fprintf(&b, "• %s\n", Escape(feature))
	}
	fmt.Fprintf(&b, "\n💰 Цена: <b>%d ₽</b> или <b>%d ⭐</b> за месяц", def.PriceRub, def.PriceStars)
	return b.String()
}

func PaymentMethods(def *types.TariffDefinition) string {
	return fmt.Sprintf("💳 <b>Оплата тарифа «%s»</b>\nВыберите способ оплаты:", Escape(def.DisplayName))
}

func CryptoInvoiceCreated(def *types.TariffDefinition) string {
	return fmt.Sprintf(
		"🪙 <b>Счёт создан</b>\nТариф «%s», %d ₽ (TON, USDT или BTC).\n\n"+
			"Счёт действителен 1 час. После оплаты нажмите «Проверить оплату».",
		Escape(def.DisplayName), def.PriceRub)
}

func PaymentPending() string {
	return "⏳ <b>Оплата ещё не поступила</b>\nЕсли вы уже оплатили, подождите минуту и проверьте снова."
}

func PaymentExpired() string {
	return "⌛ <b>Счёт истёк</b>\nСоздайте новый счёт и попробуйте снова."
}

func PaymentNotFound() string {
	return "❓ <b>Счёт не найден</b>\nВозможно, он устарел. Откройте /subscribe и создайте новый."
}

func PaymentUnknown() string {
	return "⚠️ <b>Не удалось проверить оплату</b>\nПопробуйте ещё раз через минуту."
}

func PaymentAlreadyProcessed() string {
	return "✅ <b>Этот платёж уже обработан</b>\nПодписка активна, проверьте /status."
}

func PaymentMethodUnavailable() string {
	return "🚫 <b>Способ оплаты недоступен</b>\nВыберите другой способ."
}

func PaymentActivationFailed() string {
	return "🚫 <b>Оплата получена, но активировать подписку не удалось</b>\n" +
		"Нажмите «Проверить оплату» ещё раз — деньги не потеряны."
}

func SubscriptionActivated(sub *types.Subscription, def *types.TariffDefinition) string {
	return fmt.Sprintf(
		"🎉 <b>Подписка «%s» активна!</b>\nДействует до %s.",
		Escape(def.DisplayName), sub.EndDate.Format("02.01.2006"))
}

func formatRemaining(label string, rest int) string {
	if rest == types.UnlimitedQuota {
		return fmt.Sprintf("%s: <b>безлимит</b>\n", label)
	}
	return fmt.Sprintf("%s: осталось <b>%d</b>\n", label, rest)
}

func ResourceStatus(def *types.TariffDefinition, sub *types.Subscription, photos, docs, ai int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Ваш тариф: «%s»</b>\n", Escape(def.DisplayName))
	if sub != nil {
		fmt.Fprintf(&b, "Действует до %s\n", sub.EndDate.Format("02.01.2006"))
	}
	b.WriteString("\n")
	b.WriteString(formatRemaining("📷 Фото", photos))
	b.WriteString(formatRemaining("📄 Документы", docs))
	b.WriteString(formatRemaining("💬 Вопросы ИИ", ai))
	if sub == nil {
		b.WriteString("\n💎 Больше лимитов — в /subscribe")
	}
	return b.String()
}

func LimitReached(kind types.ResourceKind, def *types.TariffDefinition) string {
	var what string
	switch kind {
	case types.ResourcePhoto:
		what = "анализ фото"
	case types.ResourceDocument:
		what = "анализ документов"
	default:
		what = "вопросы ИИ"
	}
	return fmt.Sprintf(
		"⛔ <b>Лимит исчерпан</b>\nНа тарифе «%s» %s в этом месяце закончился.\n\n"+
			"💎 Откройте /subscribe, чтобы расширить лимиты.",
		Escape(def.DisplayName), what)
}

func LimitAlmostReached(rest int) string {
	return fmt.Sprintf("⚠️ Осталось <b>%d</b> из месячного лимита.", rest)
}

func SubscriptionExpired(def *types.TariffDefinition) string {
	return fmt.Sprintf(
		"⌛ <b>Подписка «%s» закончилась</b>\nВы переведены на бесплатный тариф.\n\n"+
			"💎 Продлить: /subscribe",
		Escape(def.DisplayName))
}

func Processing() string {
	return "🔍 Анализирую, это займёт немного времени..."
}

func AnalysisResult(answer string) string {
	return Escape(answer)
}
