package i18n

import (
	"fmt"
	"strings"
	"time"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain/model"
)

// Composer renders the admin and customer notifications. Admin texts use the
// admin translator, reminders use the customer translator.
type Composer struct {
	admin       *Translator
	customer    *Translator
	loc         *time.Location
	explorerURL string
	community   string
	support     string
}

func NewComposer(admin, customer *Translator, cfg config.NotifierConfig, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	explorer := cfg.ExplorerURL
	if explorer == "" {
		explorer = "https://tronscan.org/#/transaction/"
	}
	return &Composer{
		admin:       admin,
		customer:    customer,
		loc:         loc,
		explorerURL: explorer,
		community:   cfg.CommunityName,
		support:     cfg.SupportHandle,
	}
}

// NewDefaultComposer loads the embedded catalogs for the given languages.
func NewDefaultComposer(adminLang, customerLang string, cfg config.NotifierConfig, loc *time.Location) (*Composer, error) {
	admin, err := NewTranslator(LocalesFS, adminLang)
	if err != nil {
		return nil, err
	}
	customer, err := NewTranslator(LocalesFS, customerLang)
	if err != nil {
		return nil, err
	}
	return NewComposer(admin, customer, cfg, loc), nil
}

// FormatDate renders t as DD/MM/YYYY HH:MM:SS in the reference timezone.
func (c *Composer) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(model.DateLayout)
}

func (c *Composer) TxLink(hash string) string { return c.explorerURL + hash }

// AddUser asks an admin to add the subscription owner to the group.
func (c *Composer) AddUser(admin *model.TelegramUser, sub *model.Subscription) string {
	return c.adminDetails("admin_add", admin, sub)
}

// KeepUser tells an admin a renewed customer stays in the group.
func (c *Composer) KeepUser(admin *model.TelegramUser, sub *model.Subscription) string {
	return c.adminDetails("admin_keep", admin, sub)
}

// DeleteUser asks an admin to remove an expired customer.
func (c *Composer) DeleteUser(admin *model.TelegramUser, sub *model.Subscription) string {
	return c.adminDetails("admin_delete", admin, sub)
}

func (c *Composer) adminDetails(key string, admin *model.TelegramUser, sub *model.Subscription) string {
	return c.admin.T(key,
		admin.Username,
		customerName(sub),
		c.FormatDate(sub.StartAt),
		c.FormatDate(sub.EndAt),
		sub.Plan.Period.String(),
		sub.Plan.Price,
		c.TxLink(sub.TxHash),
	)
}

// Reminder is the customer text for a subscription ending within days.
func (c *Composer) Reminder(sub *model.Subscription, days int) string {
	return c.customer.T("customer_reminder",
		customerName(sub),
		days,
		DayWord(c.customer, days),
		c.community,
		sub.Plan.Period.String(),
		c.FormatDate(sub.StartAt),
		c.FormatDate(sub.EndAt),
		sub.Plan.Price,
		c.support,
	)
}

// ReminderLog reports a customer reminder to an admin.
func (c *Composer) ReminderLog(admin *model.TelegramUser, sub *model.Subscription, days int, delivered bool) string {
	status := c.admin.T("reminder_failed")
	if delivered {
		status = c.admin.T("reminder_delivered")
	}
	return c.admin.T("admin_reminder_log",
		admin.Username,
		days,
		DayWord(c.admin, days),
		customerName(sub),
		status,
		sub.Plan.Period.String(),
		c.FormatDate(sub.EndAt),
	)
}

// DayWord picks the plural form of "day" for n. Russian has three forms:
// 1 день, 3 дня, 7 дней.
func DayWord(t *Translator, n int) string {
	if n < 0 {
		n = -n
	}
	if !strings.HasPrefix(t.Lang(), "ru") {
		if n == 1 {
			return t.T("day_one")
		}
		return t.T("day_many")
	}
	switch mod10, mod100 := n%10, n%100; {
	case mod10 == 1 && mod100 != 11:
		return t.T("day_one")
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return t.T("day_few")
	default:
		return t.T("day_many")
	}
}

func customerName(sub *model.Subscription) string {
	if sub.Customer != nil && sub.Customer.Username != "" {
		return sub.Customer.Username
	}
	return fmt.Sprintf("%d", sub.CustomerID)
}
