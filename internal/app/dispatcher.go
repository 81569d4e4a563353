package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/sms"
	"prayer_attendance/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

const (
	DispatchIndividual = "individual"
	DispatchBulk       = "bulk"

	// DefaultIndividualLimit bounds personalised sends per invocation; the host caps
	// outbound requests per run.
	DefaultIndividualLimit = 35
)

// Recipient is one addressee of a batch. Group selects the bulk request it joins
// once the individual budget is spent.
type Recipient struct {
	MemberID int64
	Name     string
	Phone    string
	Group    string
}

func recipientOf(m *member.Member) Recipient {
	return Recipient{MemberID: m.ID, Name: m.Name, Phone: m.Phone, Group: string(m.Stream)}
}

func recipientsOf(members []*member.Member) []Recipient {
	out := make([]Recipient, 0, len(members))
	for _, m := range members {
		out = append(out, recipientOf(m))
	}
	return out
}

// Template renders a personalised message for one recipient and a generic one for a group.
type Template interface {
	Personal(r Recipient) (sms.Message, error)
	Bulk(group string) (sms.Message, error)
}

// TemplateFuncs adapts two functions to Template.
type TemplateFuncs struct {
	PersonalFunc func(r Recipient) (sms.Message, error)
	BulkFunc     func(group string) (sms.Message, error)
}

func (t TemplateFuncs) Personal(r Recipient) (sms.Message, error) { return t.PersonalFunc(r) }
func (t TemplateFuncs) Bulk(group string) (sms.Message, error)    { return t.BulkFunc(group) }

// Batch is one template addressed to a list of recipients.
type Batch struct {
	Name       string
	Template   Template
	Recipients []Recipient
}

// DispatchResult records one gateway request.
type DispatchResult struct {
	Batch  string
	Mode   string
	Group  string
	Phones []string
	Err    error
}

// DispatchReport is the settled outcome of every request of one invocation.
type DispatchReport struct {
	Results []DispatchResult
}

func (r DispatchReport) Failed() []DispatchResult {
	var failed []DispatchResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Count returns the number of requests issued in a mode.
func (r DispatchReport) Count(mode string) int {
	n := 0
	for _, res := range r.Results {
		if res.Mode == mode {
			n++
		}
	}
	return n
}

// Dispatcher applies the individual-versus-bulk policy and sends everything concurrently.
// Failures are logged and reported, never retried and never returned as errors.
type Dispatcher struct {
	client  sms.Client
	limit   int
	logger  *logrus.Entry
	metrics *metrics.Metrics
}

func NewDispatcher(client sms.Client, individualLimit int, logger *logrus.Entry, m *metrics.Metrics) *Dispatcher {
	if individualLimit < 0 {
		individualLimit = 0
	}
	return &Dispatcher{client: client, limit: individualLimit, logger: logger, metrics: m}
}

type dispatchTask struct {
	result DispatchResult
	send   func(ctx context.Context) error
}

// Dispatch spends the individual budget across batches in order, then groups each
// batch's remainder by Recipient.Group into bulk requests.
func (d *Dispatcher) Dispatch(ctx context.Context, batches ...Batch) DispatchReport {
	var tasks []dispatchTask
	budget := d.limit
	for _, b := range batches {
		groups := map[string][]string{}
		var order []string
		for _, r := range b.Recipients {
			if r.Phone == "" {
				continue
			}
			if budget > 0 {
				budget--
				tasks = append(tasks, d.individualTask(b, r))
				continue
			}
			if _, seen := groups[r.Group]; !seen {
				order = append(order, r.Group)
			}
			groups[r.Group] = append(groups[r.Group], r.Phone)
		}
		sort.Strings(order)
		for _, g := range order {
			tasks = append(tasks, d.bulkTask(b, g, groups[g]))
		}
	}
	return d.run(ctx, tasks)
}

// SendCopies sends one message to each phone individually. Empty phones are skipped.
func (d *Dispatcher) SendCopies(ctx context.Context, name string, msg sms.Message, phones ...string) DispatchReport {
	var tasks []dispatchTask
	for _, phone := range phones {
		if phone == "" {
			continue
		}
		tasks = append(tasks, dispatchTask{
			result: DispatchResult{Batch: name, Mode: DispatchIndividual, Phones: []string{phone}},
			send: func(ctx context.Context) error {
				return d.client.Send(ctx, msg, phone)
			},
		})
	}
	return d.run(ctx, tasks)
}

func (d *Dispatcher) individualTask(b Batch, r Recipient) dispatchTask {
	return dispatchTask{
		result: DispatchResult{Batch: b.Name, Mode: DispatchIndividual, Group: r.Group, Phones: []string{r.Phone}},
		send: func(ctx context.Context) error {
			msg, err := b.Template.Personal(r)
			if err != nil {
				return err
			}
			return d.client.Send(ctx, msg, r.Phone)
		},
	}
}

func (d *Dispatcher) bulkTask(b Batch, group string, phones []string) dispatchTask {
	return dispatchTask{
		result: DispatchResult{Batch: b.Name, Mode: DispatchBulk, Group: group, Phones: phones},
		send: func(ctx context.Context) error {
			msg, err := b.Template.Bulk(group)
			if err != nil {
				return err
			}
			return d.client.SendBulk(ctx, msg, phones)
		},
	}
}

func (d *Dispatcher) run(ctx context.Context, tasks []dispatchTask) DispatchReport {
	sends := make([]func(context.Context) error, len(tasks))
	for i, t := range tasks {
		sends[i] = t.send
	}
	errs := settleAll(ctx, sends)

	report := DispatchReport{Results: make([]DispatchResult, len(tasks))}
	for i, t := range tasks {
		res := t.result
		res.Err = errs[i]
		report.Results[i] = res
		d.metrics.ObserveDispatch(res.Mode, res.Err)
		if res.Err != nil {
			d.logger.WithError(res.Err).WithFields(logrus.Fields{
				"batch":      res.Batch,
				"mode":       res.Mode,
				"group":      res.Group,
				"recipients": len(res.Phones),
			}).Warn("SMS dispatch failed")
		}
	}
	if len(tasks) > 0 {
		d.logger.WithFields(logrus.Fields{
			"requests":   len(tasks),
			"individual": report.Count(DispatchIndividual),
			"bulk":       report.Count(DispatchBulk),
			"failed":     len(report.Failed()),
		}).Info("SMS dispatch settled")
	}
	return report
}

// settleAll runs every job concurrently and waits for all of them. The error of job i
// is at index i; a panic is converted into that job's error.
func settleAll(ctx context.Context, jobs []func(context.Context) error) []error {
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("dispatch panicked: %v", r)
				}
			}()
			errs[i] = job(ctx)
		}()
	}
	wg.Wait()
	return errs
}
