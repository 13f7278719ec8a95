package httpx

type ctxKey string

// CtxKeyAdmin records which admin credential authenticated the request.
const CtxKeyAdmin ctxKey = "admin"
