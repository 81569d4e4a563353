package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"prayer_attendance/internal/app"
	"prayer_attendance/internal/domain/member"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const notAuthorizedReply = "This chat is not allowed to run operator commands."

// JobRunner runs a workflow on demand.
type JobRunner interface {
	Run(ctx context.Context, job app.JobID) error
}

// MemberAdmin is the part of the admin service the operator chat can use.
type MemberAdmin interface {
	ListMembers(ctx context.Context) ([]*member.Member, error)
	GetMember(ctx context.Context, id int64) (*member.Member, error)
	UpdateMember(ctx context.Context, id int64, changes *member.Member) (*member.Member, error)
}

// OperatorCommands answers chat commands from the operator chat only.
type OperatorCommands struct {
	jobs           JobRunner
	admin          MemberAdmin
	operatorChatID int64
	countryCode    string
	jobTimeout     time.Duration
	logger         *logrus.Entry
}

func NewOperatorCommands(jobs JobRunner, admin MemberAdmin, operatorChatID int64, countryCode string, jobTimeout time.Duration, logger *logrus.Entry) *OperatorCommands {
	if countryCode == "" {
		countryCode = member.DefaultCountryCode
	}
	return &OperatorCommands{
		jobs:           jobs,
		admin:          admin,
		operatorChatID: operatorChatID,
		countryCode:    countryCode,
		jobTimeout:     jobTimeout,
		logger:         logger,
	}
}

// NewPollingBot builds a bot that receives updates by long polling.
func NewPollingBot(token string, logger *logrus.Entry) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// Register binds every command to b.
func (o *OperatorCommands) Register(b *telebot.Bot) {
	commands := map[string]func(ctx context.Context, chatID int64, args []string) string{
		"/start":  o.help,
		"/help":   o.help,
		"/jobs":   o.listJobs,
		"/run":    o.runJob,
		"/member": o.findMember,
		"/unlock": o.unlockMember,
	}
	for name, fn := range commands {
		b.Handle(name, func(c telebot.Context) error {
			chatID := c.Chat().ID
			o.logger.WithFields(logrus.Fields{"handler": name, "chat_id": chatID}).Info("Command received")
			return c.Send(fn(context.Background(), chatID, c.Args()))
		})
	}
}

func (o *OperatorCommands) authorized(chatID int64, handler string) bool {
	if chatID == o.operatorChatID {
		return true
	}
	o.logger.WithFields(logrus.Fields{"handler": handler, "chat_id": chatID}).Warn("Unauthorized access attempt")
	return false
}

func (o *OperatorCommands) help(_ context.Context, chatID int64, _ []string) string {
	if chatID != o.operatorChatID {
		return "This bot only serves the attendance operators."
	}
	var b strings.Builder
	b.WriteString("Operator commands:\n\n")
	b.WriteString("/jobs - list the scheduled jobs\n")
	b.WriteString("/run <job> - run a job now\n")
	b.WriteString("/member <phone> - show a member's lock and attendance state\n")
	b.WriteString("/unlock <member id> - unlock a member and notify them\n")
	return b.String()
}

func (o *OperatorCommands) listJobs(_ context.Context, chatID int64, _ []string) string {
	if !o.authorized(chatID, "/jobs") {
		return notAuthorizedReply
	}
	names := make([]string, len(app.AllJobs))
	for i, j := range app.AllJobs {
		names[i] = string(j)
	}
	return "Jobs: " + strings.Join(names, ", ")
}

func (o *OperatorCommands) runJob(ctx context.Context, chatID int64, args []string) string {
	if !o.authorized(chatID, "/run") {
		return notAuthorizedReply
	}
	if len(args) != 1 {
		return "Usage: /run <job>"
	}
	job, err := app.ParseJobID(args[0])
	if err != nil {
		return fmt.Sprintf("Unknown job %q. Use /jobs for the list.", args[0])
	}
	ctx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()
	if err := o.jobs.Run(ctx, job); err != nil {
		return fmt.Sprintf("Job %s failed: %s", job, err.Error())
	}
	return fmt.Sprintf("Job %s finished.", job)
}

func (o *OperatorCommands) findMember(ctx context.Context, chatID int64, args []string) string {
	if !o.authorized(chatID, "/member") {
		return notAuthorizedReply
	}
	if len(args) != 1 {
		return "Usage: /member <phone>"
	}
	phone := member.CanonicalPhone(args[0], o.countryCode)
	members, err := o.admin.ListMembers(ctx)
	if err != nil {
		o.logger.WithError(err).Error("Failed to list members")
		return "Could not load members: " + err.Error()
	}
	var b strings.Builder
	for _, m := range members {
		if m.Phone != phone {
			continue
		}
		fmt.Fprintf(&b, "#%d %s (%s) locked=%t start=%s end=%s\n",
			m.ID, m.Name, m.Stream, m.IsLocked, stamp(m.AttendanceStartTime.Time, m.AttendanceStartTime.Valid),
			stamp(m.AttendanceEndTime.Time, m.AttendanceEndTime.Valid))
	}
	if b.Len() == 0 {
		return fmt.Sprintf("No member with phone %s.", phone)
	}
	return b.String()
}

func (o *OperatorCommands) unlockMember(ctx context.Context, chatID int64, args []string) string {
	if !o.authorized(chatID, "/unlock") {
		return notAuthorizedReply
	}
	if len(args) != 1 {
		return "Usage: /unlock <member id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Member id must be a number."
	}
	m, err := o.admin.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return fmt.Sprintf("Member #%d not found.", id)
		}
		o.logger.WithError(err).WithField("member_id", id).Error("Failed to load member")
		return "Could not load member: " + err.Error()
	}
	if !m.IsLocked {
		return fmt.Sprintf("%s is not locked.", m.Name)
	}
	changes := *m
	changes.IsLocked = false
	if _, err := o.admin.UpdateMember(ctx, id, &changes); err != nil {
		o.logger.WithError(err).WithField("member_id", id).Error("Failed to unlock member")
		return "Could not unlock member: " + err.Error()
	}
	o.logger.WithField("member_id", id).Info("Member unlocked from operator chat")
	return fmt.Sprintf("%s is unlocked.", m.Name)
}

func stamp(t time.Time, valid bool) string {
	if !valid {
		return "-"
	}
	return t.Format("15:04")
}
