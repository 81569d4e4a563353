package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/unlock"

	"github.com/sirupsen/logrus"
)

// UnlockDigit is the keypress that asks for a sub-admin call.
const UnlockDigit = "1"

// UnlockService bridges a locked member to their stream's sub-admin and queues the
// approval reported by the engine.
type UnlockService struct {
	members     member.Repository
	subAdmins   member.SubAdminRepository
	queue       unlock.Queue
	flow        ivr.Flow
	alerter     Alerter
	callerID    string
	countryCode string
	logger      *logrus.Entry
}

func NewUnlockService(
	members member.Repository,
	subAdmins member.SubAdminRepository,
	queue unlock.Queue,
	flow ivr.Flow,
	alerter Alerter,
	callerID, countryCode string,
	logger *logrus.Entry,
) *UnlockService {
	if countryCode == "" {
		countryCode = member.DefaultCountryCode
	}
	return &UnlockService{
		members:     members,
		subAdmins:   subAdmins,
		queue:       queue,
		flow:        flow,
		alerter:     alerter,
		callerID:    callerID,
		countryCode: countryCode,
		logger:      logger,
	}
}

// RequestUnlock handles the digit pressed after the ask-unlocking prompt.
func (s *UnlockService) RequestUnlock(ctx context.Context, streamParam string, event ivr.DigitEvent) (ivr.Directive, error) {
	log := s.logger.WithFields(logrus.Fields{"caller_id": event.CallerID, "stream": streamParam, "call_uuid": event.UUID})

	if strings.TrimSpace(event.DTMF) != UnlockDigit {
		log.Info("Caller declined unlocking")
		return s.flow.Hangup(), nil
	}
	stream, err := member.ParseStream(streamParam)
	if err != nil || !stream.CallFlowEligible() {
		log.Warn("Unlock requested for an unknown stream")
		return s.flow.Hangup(), nil
	}

	phone := member.CanonicalPhone(event.CallerID, s.countryCode)
	m, err := s.members.FindByPhoneAndStream(ctx, phone, stream)
	if errors.Is(err, member.ErrMemberNotFound) {
		return s.flow.Play(ivr.AudioUnregistered), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member for unlock: %w", err)
	}
	log = log.WithField("member_id", m.ID)

	if !m.IsLocked {
		log.Info("Unlock requested by a member who is not locked")
		return s.flow.Play(ivr.AudioInformNotLocked), nil
	}

	isSubAdmin, err := s.subAdmins.IsSubAdmin(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check sub-admin status: %w", err)
	}
	if isSubAdmin {
		log.Info("Sub-admins cannot unlock themselves by phone")
		return s.flow.Hangup(), nil
	}

	number, err := s.subAdmins.PhoneForStream(ctx, stream)
	if errors.Is(err, member.ErrNoSubAdmin) {
		log.Error("No sub-admin assigned, unlock call aborted")
		s.alerter.Alert(ctx, fmt.Sprintf("No sub-admin is assigned for the %s stream. Member %s (%d) could not be connected for unlocking.",
			stream.DisplayName(), m.Name, m.ID))
		return s.flow.Hangup(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sub-admin for %s: %w", stream, err)
	}

	log.Info("Dialling sub-admin for unlock approval")
	return s.flow.DialSubAdmin(s.callerID, number, m.ID), nil
}

// HandleCallStatus records the outcome of a sub-admin dial. Only an answered call
// counts as approval.
func (s *UnlockService) HandleCallStatus(ctx context.Context, memberID int64, status ivr.CallStatus) error {
	log := s.logger.WithFields(logrus.Fields{"member_id": memberID, "status": status.Status, "call_uuid": status.UUID})

	switch status.Status {
	case ivr.StatusAnswered:
		added, err := s.queue.Enqueue(ctx, memberID)
		if err != nil {
			return fmt.Errorf("failed to enqueue member %d for unlock: %w", memberID, err)
		}
		if added {
			log.Info("Member queued for unlocking")
		} else {
			log.Info("Member already queued or no longer locked")
		}
	case ivr.StatusBusy, ivr.StatusNoAnswer:
		log.Warn("Sub-admin did not answer the unlock call")
	default:
		log.Debug("Ignoring call status")
	}
	return nil
}
