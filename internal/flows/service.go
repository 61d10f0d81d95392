package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueToken != nil && s.deps.Validate.Check != nil
}

func (s Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return RunLogin(ctx, username, password, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, tokenStr string) error {
	return RunLogout(ctx, tokenStr, s.deps.Logout)
}

func (s Service) Validate(ctx context.Context, tokenStr string) (ValidateClaims, error) {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}
