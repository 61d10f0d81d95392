package flows

import "strconv"

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Logout   LogoutDeps
	Validate ValidateDeps
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
