package telegram

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"prayer_attendance/internal/app"
	"prayer_attendance/internal/domain/member"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const operatorChat = int64(-100500)

type stubRunner struct {
	jobs []app.JobID
	err  error
}

func (r *stubRunner) Run(_ context.Context, job app.JobID) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

type stubAdmin struct {
	members map[int64]*member.Member
	updated []*member.Member
}

func (a *stubAdmin) ListMembers(context.Context) ([]*member.Member, error) {
	out := make([]*member.Member, 0, len(a.members))
	for id := int64(1); id <= int64(len(a.members)); id++ {
		out = append(out, a.members[id])
	}
	return out, nil
}

func (a *stubAdmin) GetMember(_ context.Context, id int64) (*member.Member, error) {
	m, ok := a.members[id]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return m, nil
}

func (a *stubAdmin) UpdateMember(_ context.Context, id int64, changes *member.Member) (*member.Member, error) {
	a.updated = append(a.updated, changes)
	a.members[id] = changes
	return changes, nil
}

func newCommands(runner *stubRunner, admin *stubAdmin) *OperatorCommands {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewOperatorCommands(runner, admin, operatorChat, "+91", time.Minute, logrus.NewEntry(l))
}

func TestOperatorCommands_RejectOtherChats(t *testing.T) {
	runner := &stubRunner{}
	cmds := newCommands(runner, &stubAdmin{})

	assert.Equal(t, notAuthorizedReply, cmds.runJob(context.Background(), 42, []string{"daily-verses"}))
	assert.Equal(t, notAuthorizedReply, cmds.unlockMember(context.Background(), 42, []string{"1"}))
	assert.Empty(t, runner.jobs)
	assert.NotContains(t, cmds.help(context.Background(), 42, nil), "/run")
}

func TestOperatorCommands_RunJob(t *testing.T) {
	runner := &stubRunner{}
	cmds := newCommands(runner, &stubAdmin{})

	reply := cmds.runJob(context.Background(), operatorChat, []string{"lock-absentees"})

	assert.Equal(t, "Job lock-absentees finished.", reply)
	assert.Equal(t, []app.JobID{app.JobLockAbsentees}, runner.jobs)

	assert.Contains(t, cmds.runJob(context.Background(), operatorChat, []string{"reboot"}), "Unknown job")
	assert.Equal(t, "Usage: /run <job>", cmds.runJob(context.Background(), operatorChat, nil))

	runner.err = errors.New("gateway down")
	assert.Equal(t, "Job daily-verses failed: gateway down", cmds.runJob(context.Background(), operatorChat, []string{"daily-verses"}))
}

func TestOperatorCommands_ListJobs(t *testing.T) {
	cmds := newCommands(&stubRunner{}, &stubAdmin{})

	assert.Equal(t, "Jobs: drain-unlock-queue, daily-verses, birthday-wishes, lock-absentees",
		cmds.listJobs(context.Background(), operatorChat, nil))
}

func TestOperatorCommands_FindMember(t *testing.T) {
	admin := &stubAdmin{members: map[int64]*member.Member{
		1: {ID: 1, Name: "John", Phone: "+919876543210", Stream: member.StreamMale, IsLocked: true},
		2: {ID: 2, Name: "John", Phone: "+919876543210", Stream: member.StreamFuture,
			AttendanceStartTime: sql.NullTime{Time: time.Date(2025, 3, 10, 4, 5, 0, 0, time.UTC), Valid: true}},
	}}
	cmds := newCommands(&stubRunner{}, admin)

	reply := cmds.findMember(context.Background(), operatorChat, []string{"09876543210"})

	assert.Equal(t, "#1 John (MALE) locked=true start=- end=-\n#2 John (FUTURE) locked=false start=04:05 end=-\n", reply)
	assert.Equal(t, "No member with phone +911111111111.", cmds.findMember(context.Background(), operatorChat, []string{"1111111111"}))
}

func TestOperatorCommands_UnlockMember(t *testing.T) {
	admin := &stubAdmin{members: map[int64]*member.Member{
		1: {ID: 1, Name: "John", Phone: "+919876543210", Stream: member.StreamMale, IsLocked: true},
	}}
	cmds := newCommands(&stubRunner{}, admin)

	assert.Equal(t, "John is unlocked.", cmds.unlockMember(context.Background(), operatorChat, []string{"1"}))
	require.Len(t, admin.updated, 1)
	assert.False(t, admin.updated[0].IsLocked)
	assert.Equal(t, "+919876543210", admin.updated[0].Phone)

	assert.Equal(t, "John is not locked.", cmds.unlockMember(context.Background(), operatorChat, []string{"1"}))
	assert.Equal(t, "Member #7 not found.", cmds.unlockMember(context.Background(), operatorChat, []string{"7"}))
	assert.Equal(t, "Member id must be a number.", cmds.unlockMember(context.Background(), operatorChat, []string{"x"}))
}
