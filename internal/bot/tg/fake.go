package tg

import (
	"context"
	"sync"

	"github.com/mymmrac/telego"
)

// FakeAPI: API в памяти для тестов обработчиков.
type FakeAPI struct {
	mu       sync.Mutex
	Sent     []*telego.SendMessageParams
	Edits    []*telego.EditMessageTextParams
	Drops    []*telego.EditMessageReplyMarkupParams
	Answers  []*telego.AnswerCallbackQueryParams
	Statuses map[int64]telego.ChatMember // по user ID
	nextID   int
}

// NewFakeAPI создаёт пустой FakeAPI.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{Statuses: make(map[int64]telego.ChatMember)}
}

func (f *FakeAPI) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.Sent = append(f.Sent, p)
	return &telego.Message{MessageID: f.nextID}, nil
}

func (f *FakeAPI) EditMessageText(_ context.Context, p *telego.EditMessageTextParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, p)
	return &telego.Message{MessageID: p.MessageID}, nil
}

func (f *FakeAPI) EditMessageReplyMarkup(_ context.Context, p *telego.EditMessageReplyMarkupParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Drops = append(f.Drops, p)
	return &telego.Message{MessageID: p.MessageID}, nil
}

func (f *FakeAPI) AnswerCallbackQuery(_ context.Context, p *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answers = append(f.Answers, p)
	return nil
}

func (f *FakeAPI) GetChatMember(_ context.Context, p *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.Statuses[p.UserID]; ok {
		return m, nil
	}
	return &telego.ChatMemberMember{Status: telego.MemberStatusMember, User: telego.User{ID: p.UserID}}, nil
}

// LastText: текст последнего отправленного сообщения.
func (f *FakeAPI) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return f.Sent[len(f.Sent)-1].Text
}

// LastAnswer: текст последнего ответа на нажатие.
func (f *FakeAPI) LastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Answers) == 0 {
		return ""
	}
	return f.Answers[len(f.Answers)-1].Text
}
