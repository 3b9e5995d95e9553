package telegram

import (
	"sync"

	"github.com/weed35937/tele-bot-digital/app/service"
)

type formStep int32

const (
	stepName formStep = iota
	stepDescription
	stepPrice
	stepContentURL
)

// productForm is the linear admin product-entry dialogue: four prompts, no
// branching.
type productForm struct {
	step  formStep
	input service.ProductInput
}

type formSessions struct {
	mu    sync.Mutex
	forms map[int64]*productForm
}

func newFormSessions() *formSessions {
	return &formSessions{forms: map[int64]*productForm{}}
}

func (s *formSessions) start(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[userID] = &productForm{step: stepName}
}

func (s *formSessions) get(userID int64) *productForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forms[userID]
}

func (s *formSessions) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, userID)
}

// advance records the answer for the current step and returns the prompt for
// the next one. done is true once the last answer is in.
func (f *productForm) advance(answer string) (prompt string, done bool) {
	switch f.step {
	case stepName:
		f.input.Name = answer
		f.step = stepDescription
		return "Great! Now, please provide a description for the product:", false
	case stepDescription:
		f.input.Description = answer
		f.step = stepPrice
		return "Please enter the price in USD (e.g., 9.99):", false
	case stepPrice:
		f.input.Price = answer
		f.step = stepContentURL
		return "Please provide the URL where the digital content can be accessed:", false
	default:
		f.input.ContentURL = answer
		return "", true
	}
}
