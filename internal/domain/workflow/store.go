package workflow

import "context"

// SessionStore keeps each operator's open session between requests and
// restarts. Load returns ErrNoSession when the operator has nothing stored.
type SessionStore interface {
	Load(ctx context.Context, operatorID string) (*Session, error)
	// Save stores s under s.OperatorID
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, operatorID string) error
	// List returns every stored session
	List(ctx context.Context) ([]*Session, error)
}
