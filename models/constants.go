package models

// UserType distinguishes administrator accounts from standard ones
type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeStandard UserType = "padrao"
)

// Profile names with behavior hardwired in the access gate
const (
	ProfileAdmin     = "Administrador"
	ProfileNone      = "Sem perfil"
	ProfileAuditoria = "Auditoria / BI"
)

// Pages reachable without an authenticated session
var PublicPages = []string{"/", "/index.html", "/acesso-negado.html"}

// Redirect targets used by the access gate
const (
	LoginPage        = "/"
	AccessDeniedPage = "/acesso-negado.html"
	DashboardPage    = "/dashboard.html"
)

// ConferenciaStatus represents the reconciliation state of an incoming-goods
// record (supplier-declared weight vs. measured weight)
type ConferenciaStatus string

const (
	ConferenciaPendente      ConferenciaStatus = "PENDENTE"
	ConferenciaDivergente    ConferenciaStatus = "DIVERGENTE"
	ConferenciaAguardandoAdm ConferenciaStatus = "AGUARDANDO_ADM"
	ConferenciaAprovada      ConferenciaStatus = "APROVADA"
	ConferenciaRejeitada     ConferenciaStatus = "REJEITADA"
)

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)
