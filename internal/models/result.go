package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the uniform outcome every pipeline stage reports.
// Stage payloads embed it so status and message sit at the top level of the JSON.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Success(message string) Result {
	return Result{Status: StatusSuccess, Message: message}
}

func Failure(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
