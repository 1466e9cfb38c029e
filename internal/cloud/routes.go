package cloud

// APIBase is prepended to every route under the configured server URL.
const APIBase = "/api/v1"

const (
	routeLogin  = "/login"
	routeLogout = "/logout"

	routeAccountCreate        = "/accounts/create"
	routeAccountDetails       = "/accounts/user"
	routeAccountEdit          = "/accounts/edit"
	routeAccountSendCode      = "/accounts/send/confirmation/code"
	routeAccountPasswordReset = "/accounts/password/reset"

	routeBackups       = "/backups/"
	routeBackupCreate  = "/backups/create"
	routeBackupDetails = "/backups/details/"
	routeBackupDelete  = "/backups/delete/"
)
