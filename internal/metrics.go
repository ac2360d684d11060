package internal

import "expvar"

var (
	requestsTotal    = expvar.NewMap("reviewhook_requests_total")
	parseErrors      = expvar.NewMap("reviewhook_parse_errors_total")
	publishErrors    = expvar.NewMap("reviewhook_publish_errors_total")
	triggersEmitted  = expvar.NewMap("reviewhook_triggers_total")
	duplicatesTotal  = expvar.NewMap("reviewhook_duplicates_suppressed_total")
	ineligibleTotal  = expvar.NewMap("reviewhook_ineligible_branches_total")
	commandsDetected = expvar.NewMap("reviewhook_commands_total")
)

func IncRequest(platform string) {
	requestsTotal.Add(platform, 1)
}

func IncParseError(platform string) {
	parseErrors.Add(platform, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

func IncTrigger(platform string) {
	triggersEmitted.Add(platform, 1)
}

func IncDuplicateSuppressed(platform string) {
	duplicatesTotal.Add(platform, 1)
}

func IncIneligibleBranch(platform string) {
	ineligibleTotal.Add(platform, 1)
}

func IncCommand(platform string) {
	commandsDetected.Add(platform, 1)
}
