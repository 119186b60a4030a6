package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindd/internal/position"
	"remindd/internal/reminder"
	"remindd/internal/store"
	logx "remindd/pkg/logx"
)

const cmdTimeout = 10 * time.Second

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnLocation, a.onLocation)
	// Live-location updates arrive as edits of the original message.
	a.bot.Handle(tele.OnEdited, a.onLocation)

	a.bot.Handle("/list", a.owned(a.cmdList))
	a.bot.Handle("/delete", a.owned(a.cmdDelete))
	a.bot.Handle("/export", a.owned(a.cmdExport))
	a.bot.Handle(tele.OnDocument, a.owned(a.cmdImport))
}

// owned gates a handler on the configured owner list. Anyone else is
// ignored without a reply, so the bot doesn't advertise itself.
func (a *Adapter) owned(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !a.isOwner(sender.ID) {
			return nil
		}
		return h(c)
	}
}

func (a *Adapter) onLocation(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Location == nil {
		return nil
	}
	if m.Sender == nil || !a.isOwner(m.Sender.ID) {
		return nil
	}

	loc := m.Location
	var accuracy float64
	if loc.HorizontalAccuracy != nil {
		accuracy = float64(*loc.HorizontalAccuracy)
	}
	p := position.Position{
		Lat:      float64(loc.Lat),
		Lng:      float64(loc.Lng),
		Accuracy: accuracy,
		At:       time.Now(),
	}
	a.log.Debug("position sample received",
		logx.Float64("lat", p.Lat), logx.Float64("lng", p.Lng))
	a.pushFix(p)
	return nil
}

func (a *Adapter) cmdList(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	rs, err := a.st.List(ctx)
	if err != nil {
		return c.Send("listing failed: " + err.Error())
	}
	if len(rs) == 0 {
		return c.Send("No reminders.")
	}

	var b strings.Builder
	for _, r := range rs {
		fmt.Fprintf(&b, "• %s — %s (%s)\n", r.ID, r.Text, describe(r))
	}
	return c.Send(b.String())
}

func (a *Adapter) cmdDelete(c tele.Context) error {
	id := strings.TrimSpace(c.Message().Payload)
	if id == "" {
		return c.Send("Usage: /delete <id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	if _, ok, err := a.st.Get(ctx, id); err != nil {
		return c.Send("delete failed: " + err.Error())
	} else if !ok {
		return c.Send("No reminder with id " + id)
	}
	if err := a.st.Delete(ctx, id); err != nil {
		return c.Send("delete failed: " + err.Error())
	}
	return c.Send("Deleted " + id)
}

func (a *Adapter) cmdExport(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := store.Export(ctx, a.st, &buf); err != nil {
		return c.Send("export failed: " + err.Error())
	}
	doc := &tele.Document{
		File:     tele.FromReader(&buf),
		FileName: "reminders.json",
	}
	return c.Send(doc)
}

// cmdImport replaces the collection from a JSON document sent with the
// caption "/import". Documents without that caption are ignored so the
// bot never destroys the collection by accident.
func (a *Adapter) cmdImport(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Document == nil {
		return nil
	}
	if strings.TrimSpace(m.Caption) != "/import" {
		return nil
	}

	rc, err := a.bot.File(&m.Document.File)
	if err != nil {
		return c.Send("import failed: " + err.Error())
	}
	defer rc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	n, err := store.Import(ctx, a.st, rc)
	if err != nil {
		return c.Send("import failed: " + err.Error())
	}
	return c.Send(fmt.Sprintf("Imported %d reminders.", n))
}

func describe(r reminder.Reminder) string {
	switch {
	case r.IsLocation():
		where := r.Address
		if where == "" {
			where = fmt.Sprintf("%.5f,%.5f", r.Lat, r.Lng)
		}
		return fmt.Sprintf("%s within %.0fm of %s", r.On, r.Radius, where)
	case r.TimeTrigger == reminder.TimeExact:
		if r.Recurring {
			return fmt.Sprintf("at %s every %d %s", r.TimeOfDay, r.Interval, r.Unit)
		}
		return "at " + r.TimeOfDay
	case r.TimeTrigger == reminder.TimeInterval:
		rec := ""
		if r.Recurring {
			rec = ", repeating"
		}
		return fmt.Sprintf("in %d %s%s", r.Interval, r.Unit, rec)
	case r.TimeTrigger == reminder.TimeCron:
		return "cron " + r.CronSpec
	default:
		return "unconfigured"
	}
}
