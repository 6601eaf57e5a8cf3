// Package orchestrator runs the per-turn protocol of a conversation: it sends
// the user's utterance to the language service, classifies the response,
// performs at most one image generation or booking dispatch, appends the
// resulting turns and collects follow-up task suggestions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/dispatch"
	"github.com/kalambet/aura/internal/sigil"
	"github.com/kalambet/aura/internal/tasks"
)

const (
	defaultAssistantName  = "A.U.R.A"
	defaultMaxUploadBytes = 100 << 20
)

// ErrFileTooLarge is returned by Upload when the file exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// Language is the language service the orchestrator talks to.
type Language interface {
	Complete(ctx context.Context, text string) (string, error)
	// AgenticAction returns nil when the text holds no usable action.
	AgenticAction(ctx context.Context, text string) (*booking.Action, error)
	SuggestTasks(ctx context.Context, text string) ([]string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Historian is implemented by language services that keep chat history.
// Replies that were action markers are recorded through it with the text the
// user was shown.
type Historian interface {
	Remember(utterance, shown string)
}

// Dispatcher routes a booking action to its domain handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, action booking.Action, utterance string) (dispatch.Result, bool, error)
}

// FileRegistry is the set of uploaded files the language service draws
// context from. Submit never touches it.
type FileRegistry interface {
	Add(name, text string, size int)
	Remove(name string) bool
}

// Deps are the collaborators and settings of an Orchestrator.
type Deps struct {
	Language   Language
	Dispatcher Dispatcher
	Files      FileRegistry
	// Extract turns an uploaded file into text.
	Extract func(name string, data []byte) (string, error)

	Identity       conversation.Identity
	AssistantName  string
	MaxUploadBytes int64
	Now            func() time.Time
	Logger         *slog.Logger
}

// Status is a snapshot of the transient flags.
type Status struct {
	Composing       bool   `json:"composing"`
	GeneratingImage bool   `json:"generating_image"`
	Uploading       bool   `json:"uploading"`
	UploadError     string `json:"upload_error,omitempty"`
}

// Orchestrator owns one session's transcript and task collector. Submit and
// Upload must not overlap; callers serialize them.
type Orchestrator struct {
	lang       Language
	dispatcher Dispatcher
	files      FileRegistry
	extract    func(name string, data []byte) (string, error)

	name      string
	maxUpload int64
	now       func() time.Time
	logger    *slog.Logger

	transcript *conversation.Transcript
	tasks      *tasks.Collector

	mu     sync.Mutex
	status Status
}

// New creates an Orchestrator whose transcript is seeded with the greeting
// for deps.Identity.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Language == nil {
		return nil, errors.New("orchestrator: language service is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("orchestrator: dispatcher is required")
	}
	o := &Orchestrator{
		lang:       deps.Language,
		dispatcher: deps.Dispatcher,
		files:      deps.Files,
		extract:    deps.Extract,
		name:       deps.AssistantName,
		maxUpload:  deps.MaxUploadBytes,
		now:        deps.Now,
		logger:     deps.Logger,
		tasks:      tasks.NewCollector(),
	}
	if o.name == "" {
		o.name = defaultAssistantName
	}
	if o.maxUpload <= 0 {
		o.maxUpload = defaultMaxUploadBytes
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.transcript = conversation.NewTranscript(o.turn(conversation.RoleAssistant,
		conversation.Greeting(deps.Identity, o.name), nil))
	return o, nil
}

// Submit runs one turn for utterance. Blank input is ignored. Every failure
// is turned into an assistant message or logged; Submit never fails.
func (o *Orchestrator) Submit(ctx context.Context, utterance string) {
	if strings.TrimSpace(utterance) == "" {
		return
	}
	o.transcript.Append(o.turn(conversation.RoleUser, utterance, nil))

	release := o.raise(func(s *Status) *bool { return &s.Composing })
	defer release()

	raw, err := guard(func() (string, error) { return o.lang.Complete(ctx, utterance) })
	if err != nil {
		o.logger.Warn("language service completion failed", "error", err)
		o.reply(ConnectionApology, nil)
		return
	}

	c := sigil.Classify(raw)
	mark := o.transcript.Len()
	switch c.Kind {
	case sigil.Image:
		o.generateImage(ctx, c.Prompt)
		o.rememberShown(utterance, mark)
	case sigil.Booking:
		o.book(ctx, utterance, c.Domain)
		o.rememberShown(utterance, mark)
	default:
		o.reply(c.Text, nil)
	}

	o.suggestTasks(ctx, utterance)
}

func (o *Orchestrator) generateImage(ctx context.Context, prompt string) {
	release := o.raise(func(s *Status) *bool { return &s.GeneratingImage })
	defer release()

	url, err := guard(func() (string, error) { return o.lang.GenerateImage(ctx, prompt) })
	if err != nil {
		o.logger.Warn("image generation failed", "prompt", prompt, "error", err)
		o.reply(ImageApology, nil)
		return
	}
	o.reply(imageText(prompt), conversation.ImageAttachment(url, prompt))
}

type dispatched struct {
	res dispatch.Result
	ok  bool
}

func (o *Orchestrator) book(ctx context.Context, utterance string, domain booking.Domain) {
	action, err := guard(func() (*booking.Action, error) { return o.lang.AgenticAction(ctx, utterance) })
	if err != nil {
		o.logger.Warn("agentic action extraction failed", "domain", domain, "error", err)
		o.reply(BookingApology, nil)
		return
	}
	if action == nil {
		o.logger.Warn("booking request produced no usable action", "domain", domain)
		return
	}
	a := *action
	if a.Domain == "" {
		a.Domain = domain
	}

	out, err := guard(func() (dispatched, error) {
		res, ok, err := o.dispatcher.Dispatch(ctx, a, utterance)
		return dispatched{res: res, ok: ok}, err
	})
	if err != nil {
		o.logger.Warn("booking dispatch failed", "domain", a.Domain, "error", err)
		o.reply(BookingApology, nil)
		return
	}
	if !out.ok {
		o.logger.Warn("booking dispatch produced no result", "domain", a.Domain)
		return
	}

	var att *conversation.Attachment
	if out.res.Payload != nil {
		att = conversation.OrderAttachment(out.res.Domain, out.res.Payload)
	}
	o.reply(out.res.DisplayText, att)
}

// rememberShown passes the reply the user saw in place of a marker back to a
// language service that keeps history. Nothing is passed when no reply was
// appended.
func (o *Orchestrator) rememberShown(utterance string, from int) {
	h, ok := o.lang.(Historian)
	if !ok {
		return
	}
	added := o.transcript.Since(from)
	if len(added) == 0 {
		return
	}
	shown := added[len(added)-1].Text
	if _, err := guard(func() (struct{}, error) {
		h.Remember(utterance, shown)
		return struct{}{}, nil
	}); err != nil {
		o.logger.Warn("recording chat history failed", "error", err)
	}
}

func (o *Orchestrator) suggestTasks(ctx context.Context, utterance string) {
	titles, err := guard(func() ([]string, error) { return o.lang.SuggestTasks(ctx, utterance) })
	if err != nil {
		o.logger.Warn("task suggestion failed", "error", err)
		return
	}
	batch := make([]tasks.Suggestion, 0, len(titles))
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		batch = append(batch, tasks.Suggestion{
			ID:        newID(),
			Title:     title,
			Status:    tasks.StatusPending,
			Note:      originNote(o.name),
			CreatedAt: o.now(),
		})
	}
	o.tasks.PrependBatch(batch)
}

// Upload extracts text from a file and registers it with the language
// service's file set. Failures are recorded as the upload error.
func (o *Orchestrator) Upload(name string, data []byte) error {
	release := o.raise(func(s *Status) *bool { return &s.Uploading })
	defer release()
	o.setUploadError("")

	if o.files == nil || o.extract == nil {
		return o.uploadFailed(errors.New("file uploads are not configured"))
	}
	if int64(len(data)) > o.maxUpload {
		o.setUploadError(fileTooLargeText(o.maxUpload))
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, name, len(data))
	}

	text, err := guard(func() (string, error) { return o.extract(name, data) })
	if err != nil {
		return o.uploadFailed(fmt.Errorf("processing %s: %w", name, err))
	}
	if _, err := guard(func() (struct{}, error) {
		o.files.Add(name, text, len(data))
		return struct{}{}, nil
	}); err != nil {
		return o.uploadFailed(fmt.Errorf("registering %s: %w", name, err))
	}

	o.reply(fileProcessedText(name), nil)
	return nil
}

func (o *Orchestrator) uploadFailed(err error) error {
	o.logger.Warn("file upload failed", "error", err)
	o.setUploadError(err.Error())
	return err
}

// RemoveFile unregisters an uploaded file.
func (o *Orchestrator) RemoveFile(name string) bool {
	if o.files == nil {
		return false
	}
	return o.files.Remove(name)
}

// ClearUploadError dismisses the last upload error.
func (o *Orchestrator) ClearUploadError() {
	o.setUploadError("")
}

// Messages returns the transcript in append order.
func (o *Orchestrator) Messages() []conversation.Turn {
	return o.transcript.Snapshot()
}

// MessagesSince returns the turns appended at or after index i.
func (o *Orchestrator) MessagesSince(i int) []conversation.Turn {
	return o.transcript.Since(i)
}

// MessageCount returns the transcript length.
func (o *Orchestrator) MessageCount() int {
	return o.transcript.Len()
}

// Tasks returns the collected suggestions, newest batch first.
func (o *Orchestrator) Tasks() []tasks.Suggestion {
	return o.tasks.Snapshot()
}

// SetTaskStatus updates a suggestion on behalf of the task center.
func (o *Orchestrator) SetTaskStatus(id string, s tasks.Status) (tasks.Suggestion, error) {
	return o.tasks.SetStatus(id, s)
}

// Status returns the current transient flags.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// raise sets one flag and returns the function that clears it.
func (o *Orchestrator) raise(flag func(*Status) *bool) func() {
	o.mu.Lock()
	*flag(&o.status) = true
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		*flag(&o.status) = false
		o.mu.Unlock()
	}
}

func (o *Orchestrator) setUploadError(msg string) {
	o.mu.Lock()
	o.status.UploadError = msg
	o.mu.Unlock()
}

func (o *Orchestrator) reply(text string, att *conversation.Attachment) {
	o.transcript.Append(o.turn(conversation.RoleAssistant, text, att))
}

func (o *Orchestrator) turn(role conversation.Role, text string, att *conversation.Attachment) conversation.Turn {
	return conversation.Turn{
		ID:         newID(),
		Role:       role,
		Text:       text,
		CreatedAt:  o.now(),
		Attachment: att,
	}
}

// guard runs fn and reports a panic as an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()
	return fn()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
