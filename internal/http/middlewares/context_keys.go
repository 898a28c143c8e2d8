package middlewares

// gin context keys shared by the middlewares and the handlers
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
	CtxUserName  = "auth.userName"
	CtxCSRFToken = "csrf.token"
)
