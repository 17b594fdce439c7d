package transport

import (
	"sync"

	"github.com/jordan-wright/email"
)

// MockMailTransport records sent mails in memory. SetSendError makes every
// following Send fail without recording the mail.
type MockMailTransport struct {
	sync.RWMutex
	mails   []*email.Email
	sendErr error
}

func NewMock() *MockMailTransport {
	return &MockMailTransport{
		mails: make([]*email.Email, 0),
	}
}

func (m *MockMailTransport) Send(mail *email.Email) error {
	m.Lock()
	defer m.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.mails = append(m.mails, mail)

	return nil
}

func (m *MockMailTransport) SetSendError(err error) {
	m.Lock()
	defer m.Unlock()

	m.sendErr = err
}

func (m *MockMailTransport) GetLastSentMail() *email.Email {
	m.RLock()
	defer m.RUnlock()

	if len(m.mails) == 0 {
		return nil
	}

	return m.mails[len(m.mails)-1]
}

func (m *MockMailTransport) GetSentMails() []*email.Email {
	m.RLock()
	defer m.RUnlock()

	mails := make([]*email.Email, len(m.mails))
	copy(mails, m.mails)

	return mails
}
