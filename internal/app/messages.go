package app

import (
	"fmt"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/period"
	"prayer_attendance/internal/domain/sms"
)

// Messages renders the registered SMS templates for members.
type Messages struct {
	catalog  *sms.Catalog
	callerID string
}

func NewMessages(catalog *sms.Catalog, callerID string) *Messages {
	return &Messages{catalog: catalog, callerID: callerID}
}

func (m *Messages) Acknowledgement(mem *member.Member, session period.Session) (sms.Message, error) {
	return m.catalog.Render(sms.KeyAcknowledgement, sms.Fields{
		Name: mem.Name, Cohort: mem.Stream.DisplayName(), Session: session.String(),
	})
}

func (m *Messages) Confirmation(mem *member.Member, session period.Session) (sms.Message, error) {
	return m.catalog.Render(sms.KeyConfirmation, sms.Fields{
		Name: mem.Name, Cohort: mem.Stream.DisplayName(), Session: session.String(),
	})
}

func (m *Messages) Lock(mem *member.Member) (sms.Message, error) {
	return m.catalog.Render(sms.KeyLock, sms.Fields{
		Name: mem.Name, Cohort: mem.Stream.DisplayName(), CallerID: m.callerID,
	})
}

func (m *Messages) Unlock(mem *member.Member) (sms.Message, error) {
	return m.catalog.Render(sms.KeyUnlock, sms.Fields{
		Phone: mem.Phone, Cohort: mem.Stream.DisplayName(),
	})
}

func (m *Messages) LockTemplate() Template {
	return TemplateFuncs{
		PersonalFunc: func(r Recipient) (sms.Message, error) {
			return m.catalog.Render(sms.KeyLock, sms.Fields{
				Name: r.Name, Cohort: member.Stream(r.Group).DisplayName(), CallerID: m.callerID,
			})
		},
		BulkFunc: func(group string) (sms.Message, error) {
			return m.catalog.Render(sms.KeyLock, sms.Fields{
				Cohort: member.Stream(group).DisplayName(), CallerID: m.callerID,
			})
		},
	}
}

func (m *Messages) UnlockTemplate() Template {
	return TemplateFuncs{
		PersonalFunc: func(r Recipient) (sms.Message, error) {
			return m.catalog.Render(sms.KeyUnlock, sms.Fields{
				Phone: r.Phone, Cohort: member.Stream(r.Group).DisplayName(),
			})
		},
		BulkFunc: func(group string) (sms.Message, error) {
			return m.catalog.Render(sms.KeyUnlock, sms.Fields{Cohort: member.Stream(group).DisplayName()})
		},
	}
}

func (m *Messages) BirthdayTemplate() Template {
	return TemplateFuncs{
		PersonalFunc: func(r Recipient) (sms.Message, error) {
			return m.catalog.Render(sms.KeyBirthday, sms.Fields{Name: r.Name})
		},
		BulkFunc: func(string) (sms.Message, error) {
			return m.catalog.Render(sms.KeyBirthday, sms.Fields{})
		},
	}
}

// VerseTemplate renders the size-specific verse once; verses are never personalised.
func (m *Messages) VerseTemplate(size member.VerseSize, text, date string) (Template, error) {
	var key string
	switch size {
	case member.VerseSmall:
		key = sms.KeyVerseSmall
	case member.VerseMedium:
		key = sms.KeyVerseMedium
	case member.VerseLarge:
		key = sms.KeyVerseLarge
	default:
		return nil, fmt.Errorf("unknown verse size %q", size)
	}
	msg, err := m.catalog.Render(key, sms.Fields{Date: date, Verse: text})
	if err != nil {
		return nil, err
	}
	return TemplateFuncs{
		PersonalFunc: func(Recipient) (sms.Message, error) { return msg, nil },
		BulkFunc:     func(string) (sms.Message, error) { return msg, nil },
	}, nil
}
