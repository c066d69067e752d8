package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"med-reminder/internal/attempts"
	"med-reminder/internal/calls"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
)

// recorder collects the ordered boundary interactions of one test call.
type recorder struct {
	events []string
}

func (r *recorder) add(e string) { r.events = append(r.events, e) }

func (r *recorder) has(e string) bool {
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

type stubSession struct {
	rec     *recorder
	closing bool
	replies []string

	// replyErr is returned once replyOK replies have been served.
	replyErr error
	replyOK  int
}

func (s *stubSession) GenerateReply(ctx context.Context, instructions string) error {
	if s.closing {
		return ErrSessionClosing
	}
	if s.replyErr != nil && len(s.replies) >= s.replyOK {
		return s.replyErr
	}
	s.replies = append(s.replies, instructions)
	s.rec.add("reply")
	return nil
}

func (s *stubSession) WaitForPlayout(ctx context.Context) error {
	s.rec.add("playout")
	return nil
}

type stubRooms struct {
	rec *recorder
	err error
}

func (s *stubRooms) DeleteRoom(ctx context.Context, room string) error {
	if s.err != nil {
		return s.err
	}
	s.rec.add("hangup")
	return nil
}

type stubSIP struct {
	rec         *recorder
	transferErr error
	gotIdentity string
	gotTarget   string
}

func (s *stubSIP) CreateParticipant(ctx context.Context, req media.SIPParticipantRequest) error {
	s.rec.add("dial")
	return nil
}

func (s *stubSIP) TransferParticipant(ctx context.Context, room, identity, transferTo string) error {
	s.gotIdentity = identity
	s.gotTarget = transferTo
	if s.transferErr != nil {
		return s.transferErr
	}
	s.rec.add("transfer")
	return nil
}

type stubEscalator struct {
	rec  *recorder
	err  error
	got  calls.Context
	hits int
}

func (s *stubEscalator) Escalate(ctx context.Context, cur calls.Context, reason string) (calls.Context, error) {
	s.hits++
	s.got = cur
	if s.err != nil {
		return calls.Context{}, s.err
	}
	s.rec.add("escalate")
	return cur, nil
}

type fixture struct {
	agent     *Agent
	rec       *recorder
	session   *stubSession
	rooms     *stubRooms
	sip       *stubSIP
	escalator *stubEscalator
	counter   *attempts.MemoryCounter
}

func newFixture(t *testing.T, call calls.Context) *fixture {
	t.Helper()
	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		session:   &stubSession{rec: rec},
		rooms:     &stubRooms{rec: rec},
		sip:       &stubSIP{rec: rec},
		escalator: &stubEscalator{rec: rec},
		counter:   attempts.NewMemoryCounter(),
	}
	a, err := New(Config{
		Call:      call,
		Room:      "med-call-test-1",
		Session:   f.session,
		Rooms:     f.rooms,
		SIP:       f.sip,
		Attempts:  f.counter,
		Escalator: f.escalator,
		Log:       slog.Default(),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	f.agent = a
	return f
}

func patientCall(backups ...string) calls.Context {
	return calls.Context{
		PhoneNumber:        "+15551230001",
		CallType:           calls.CallTypeReminder,
		UserName:           "Ravi",
		MedicineName:       "Aspirin",
		HeadOfFamilyPhones: backups,
	}
}

func TestEndCall_RejectedBeforeAnyOutcome(t *testing.T) {
	f := newFixture(t, patientCall())

	res, err := f.agent.EndCall(context.Background(), "conversation complete")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusNotReady {
		t.Fatalf("expected not_ready, got %q", res.Status)
	}
	if f.rec.has("hangup") {
		t.Fatalf("premature end_call must not hang up")
	}
	if len(f.session.replies) != 1 {
		t.Fatalf("expected continue-conversation reply, got %v", f.session.replies)
	}
}

func TestConfirmTaken_PlayoutBeforeHangupAndGateCloses(t *testing.T) {
	f := newFixture(t, patientCall())

	res, err := f.agent.ConfirmTaken(context.Background(), "yes I took it")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusConfirmed || res.User != "Ravi" || res.Medicine != "Aspirin" {
		t.Fatalf("unexpected result: %+v", res)
	}

	want := []string{"reply", "playout", "hangup"}
	if len(f.rec.events) != len(want) {
		t.Fatalf("unexpected event sequence: %v", f.rec.events)
	}
	for i, e := range want {
		if f.rec.events[i] != e {
			t.Fatalf("expected %v, got %v", want, f.rec.events)
		}
	}

	if f.agent.CanEndCall() {
		t.Fatalf("gate must be closed after termination")
	}

	// The gate is single-use: a later end_call is premature again.
	res, err = f.agent.EndCall(context.Background(), "done")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusNotReady {
		t.Fatalf("expected not_ready after gate reset, got %q", res.Status)
	}
}

func TestConfirmWillBuy_ReturnsWillBuy(t *testing.T) {
	f := newFixture(t, patientCall())

	res, err := f.agent.ConfirmWillBuy(context.Background(), "will pick it up")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusWillBuy {
		t.Fatalf("expected will_buy, got %q", res.Status)
	}
	if !f.rec.has("hangup") {
		t.Fatalf("expected call terminated")
	}
}

func TestDecline_SingleRefusalEscalatesAndTerminates(t *testing.T) {
	f := newFixture(t, patientCall("+A", "+B"))

	res, err := f.agent.Decline(context.Background(), "feeling fine today")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusRefusedEscalated {
		t.Fatalf("expected refused_escalated, got %q", res.Status)
	}
	if f.escalator.hits != 1 {
		t.Fatalf("expected one escalation, got %d", f.escalator.hits)
	}
	if !f.rec.has("hangup") {
		t.Fatalf("expected call terminated")
	}
	// Announcement must finish playing before escalation and hangup.
	if f.rec.events[0] != "reply" || f.rec.events[1] != "playout" {
		t.Fatalf("expected announcement before termination: %v", f.rec.events)
	}
	if f.agent.CanEndCall() {
		t.Fatalf("gate must be closed after termination")
	}
}

func TestDecline_EmptyBackupListStillTerminates(t *testing.T) {
	f := newFixture(t, patientCall())

	res, err := f.agent.Decline(context.Background(), "refused")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusRefusedEscalated {
		t.Fatalf("expected refused_escalated, got %q", res.Status)
	}
	if f.escalator.hits != 0 {
		t.Fatalf("escalation must be skipped with no contacts")
	}
	if !f.rec.has("hangup") {
		t.Fatalf("call must still terminate")
	}
}

func TestDecline_EscalationFailureDoesNotFailAction(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	f.escalator.err = errors.New("platform down")

	res, err := f.agent.Decline(context.Background(), "refused")
	if err != nil {
		t.Fatalf("escalation failure must be swallowed, got %v", err)
	}
	if res.Status != StatusRefusedEscalated {
		t.Fatalf("expected refused_escalated, got %q", res.Status)
	}
	if !f.rec.has("hangup") {
		t.Fatalf("call must still terminate")
	}
}

func TestAnsweringMachine_FirstDetectionOnlyAsksForPresence(t *testing.T) {
	f := newFixture(t, patientCall("+A"))

	res, err := f.agent.DetectedAnsweringMachine(context.Background(), "leave a message after the beep")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusAwaitingConfirmation {
		t.Fatalf("expected awaiting_confirmation, got %q", res.Status)
	}
	if f.rec.has("hangup") {
		t.Fatalf("first detection must not terminate")
	}
	key := attempts.Key("+15551230001", "Aspirin")
	if n, _ := f.counter.Get(context.Background(), key); n != 0 {
		t.Fatalf("ledger must not be touched on first detection, got %d", n)
	}
}

func TestAnsweringMachine_SecondDetectionCountsOnceAndTerminates(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	ctx := context.Background()

	if _, err := f.agent.DetectedAnsweringMachine(ctx, "beep"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	res, err := f.agent.DetectedAnsweringMachine(ctx, "beep")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusVoicemail {
		t.Fatalf("expected voicemail, got %q", res.Status)
	}
	if !f.rec.has("hangup") {
		t.Fatalf("second detection must terminate")
	}
	key := attempts.Key("+15551230001", "Aspirin")
	if n, _ := f.counter.Get(ctx, key); n != 1 {
		t.Fatalf("ledger must increment exactly once per call, got %d", n)
	}
	if f.escalator.hits != 0 {
		t.Fatalf("below the cap there must be no escalation")
	}
}

func TestAnsweringMachine_CapReachedEscalates(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	ctx := context.Background()

	// A previous call chain already burned one attempt for this key.
	key := attempts.Key("+15551230001", "Aspirin")
	if _, err := f.counter.Incr(ctx, key); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if _, err := f.agent.DetectedAnsweringMachine(ctx, "beep"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := f.agent.DetectedAnsweringMachine(ctx, "beep"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if f.escalator.hits != 1 {
		t.Fatalf("expected escalation at cap, got %d", f.escalator.hits)
	}
	if !f.rec.has("hangup") {
		t.Fatalf("call must terminate either way")
	}
}

func TestPatientUnavailable_EscalatesThenTerminates(t *testing.T) {
	f := newFixture(t, patientCall("+A"))

	res, err := f.agent.PatientUnavailable(context.Background(), "did not answer")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %q", res.Status)
	}
	if f.escalator.hits != 1 {
		t.Fatalf("expected escalation")
	}
	if !f.rec.has("hangup") {
		t.Fatalf("expected call terminated")
	}
}

func TestTransfer_NoTargetIsNoOp(t *testing.T) {
	f := newFixture(t, patientCall())

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusNoTransferTarget {
		t.Fatalf("expected no_transfer_target, got %q", res.Status)
	}
	if f.sip.gotTarget != "" {
		t.Fatalf("must not attempt transfer without a target")
	}
}

func TestTransfer_PrefersExplicitOverride(t *testing.T) {
	call := patientCall("+A", "+B")
	call.TransferTo = "+OVERRIDE"
	f := newFixture(t, call)
	f.agent.SetParticipant("+15551230001")

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusTransferred {
		t.Fatalf("expected transferred, got %q", res.Status)
	}
	if f.sip.gotTarget != "tel:+OVERRIDE" {
		t.Fatalf("expected override target, got %q", f.sip.gotTarget)
	}
	if f.sip.gotIdentity != "+15551230001" {
		t.Fatalf("expected bound participant, got %q", f.sip.gotIdentity)
	}
}

func TestTransfer_FallsBackToFirstBackup(t *testing.T) {
	f := newFixture(t, patientCall("+A", "+B"))
	f.agent.SetParticipant("+15551230001")

	if _, err := f.agent.Transfer(context.Background(), "user requested"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.sip.gotTarget != "tel:+A" {
		t.Fatalf("expected first backup, got %q", f.sip.gotTarget)
	}
}

func TestTransfer_ParticipantGoneIsSwallowed(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	f.sip.transferErr = &media.PlatformError{Code: "not_found", Msg: "participant does not exist"}

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("missing participant must not propagate, got %v", err)
	}
	if res.Status != StatusTransferFailed {
		t.Fatalf("expected transfer_failed, got %q", res.Status)
	}
}

func TestTransfer_OtherErrorApologizes(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	f.sip.transferErr = &media.PlatformError{Code: "internal", Msg: "trunk misconfigured"}

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("transfer errors must not propagate, got %v", err)
	}
	if res.Status != StatusTransferFailed {
		t.Fatalf("expected transfer_failed, got %q", res.Status)
	}
	// Announcement plus apology.
	if len(f.session.replies) != 2 || !strings.Contains(f.session.replies[1], "Apologize") {
		t.Fatalf("expected apology reply, got %v", f.session.replies)
	}
}

func TestTransfer_ApologyFailureIsLoggedAndSwallowed(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	f.sip.transferErr = &media.PlatformError{Code: "internal", Msg: "trunk misconfigured"}
	f.session.replyErr = errors.New("tts backend down")
	f.session.replyOK = 1

	var buf bytes.Buffer
	f.agent.log = slog.New(slog.NewTextHandler(&buf, nil))

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("apology failure must not propagate, got %v", err)
	}
	if res.Status != StatusTransferFailed {
		t.Fatalf("expected transfer_failed, got %q", res.Status)
	}
	if !strings.Contains(buf.String(), "transfer failure message not delivered") {
		t.Fatalf("apology failure must be logged, got %q", buf.String())
	}
}

func TestTransfer_ClosingSessionSkipsAnnouncement(t *testing.T) {
	f := newFixture(t, patientCall("+A"))
	f.session.closing = true
	f.agent.SetParticipant("+15551230001")

	res, err := f.agent.Transfer(context.Background(), "user requested")
	if err != nil {
		t.Fatalf("closing session must not fail transfer, got %v", err)
	}
	if res.Status != StatusTransferred {
		t.Fatalf("expected transferred even while closing, got %q", res.Status)
	}
}

func TestHangup_ToleratesRoomAlreadyDeleted(t *testing.T) {
	f := newFixture(t, patientCall())
	f.rooms.err = &media.PlatformError{Code: "not_found", Msg: "room does not exist"}

	if _, err := f.agent.ConfirmTaken(context.Background(), "yes"); err != nil {
		t.Fatalf("room-already-deleted must be benign, got %v", err)
	}
}

func TestInvoke_RoutesNamedTools(t *testing.T) {
	f := newFixture(t, patientCall("+A"))

	res, err := f.agent.Invoke(context.Background(), ToolDecline, "refused")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusRefusedEscalated {
		t.Fatalf("expected decline routed, got %q", res.Status)
	}

	if _, err := f.agent.Invoke(context.Background(), "launch_rocket", ""); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestToolNames_CoverEveryAction(t *testing.T) {
	names := ToolNames()
	if len(names) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(names))
	}
}

func TestAgent_RecordsJournalOutcomes(t *testing.T) {
	rec := &recorder{}
	repo := journal.NewMemoryRepo()
	a, err := New(Config{
		Call:      patientCall(),
		Room:      "med-call-test-2",
		Session:   &stubSession{rec: rec},
		Rooms:     &stubRooms{rec: rec},
		SIP:       &stubSIP{rec: rec},
		Attempts:  attempts.NewMemoryCounter(),
		Escalator: &stubEscalator{rec: rec},
		Journal:   journal.NewService(repo),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := a.ConfirmTaken(context.Background(), "yes"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != journal.EventConfirmed {
		t.Fatalf("expected confirmed journal event, got %+v", evs)
	}
}
