package domain

// Outcome: какой результат несёт событие узла.
type Outcome string

const (
	// OutcomeNone: эффект без результата (start, log, terminate, end).
	OutcomeNone Outcome = ""

	// OutcomeSuccess: http_request выполнен, тело ответа распарсено.
	OutcomeSuccess Outcome = "success"

	// OutcomeFail: http_request завершился ошибкой сети или парсинга.
	OutcomeFail Outcome = "fail"
)

// Result: результат эффекта узла.
//
// Для http_request заполнено ровно одно из Success / Fail,
// в соответствии с Outcome.
type Result struct {
	Outcome Outcome

	// Success: распарсенное тело ответа (может быть nil для JSON null).
	Success any

	// Fail: ошибка сети или парсинга.
	Fail error
}

// Succeeded создаёт успешный результат.
func Succeeded(body any) Result {
	return Result{Outcome: OutcomeSuccess, Success: body}
}

// Failed создаёт результат с ошибкой.
func Failed(err error) Result {
	return Result{Outcome: OutcomeFail, Fail: err}
}

// IsFail возвращает true для результата с ошибкой.
func (r Result) IsFail() bool {
	return r.Outcome == OutcomeFail
}
