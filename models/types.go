// Package models holds the session, user and menu types shared across the
// gateway. The backend owns the data; the gateway holds read-only snapshots.
package models

import "strings"

// UserProfile is the gateway's snapshot of the backend's authenticated user
type UserProfile struct {
	ID          int64    `json:"id"`
	Nome        string   `json:"nome"`
	Email       string   `json:"email"`
	Tipo        UserType `json:"tipo"`
	Perfil      string   `json:"perfil"`
	Permissoes  []string `json:"permissoes"`
	TelaInicial string   `json:"tela_inicial"`
}

// IsAdmin reports whether the user has unrestricted access
func (u *UserProfile) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.Tipo == UserTypeAdmin || u.Perfil == ProfileAdmin
}

// HomePage returns the user's landing page, defaulting to the dashboard
func (u *UserProfile) HomePage() string {
	if u == nil || strings.TrimSpace(u.TelaInicial) == "" {
		return DashboardPage
	}
	return u.TelaInicial
}

// Menu is one entry of the user's permitted navigation, in display order
type Menu struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	URL   string `json:"url"`
	Icone string `json:"icone"`
}

// MenusResponse is the payload of GET /auth/menus
type MenusResponse struct {
	Menus                 []Menu   `json:"menus"`
	PaginasPermitidas     []string `json:"paginas_permitidas"`
	OcultarBotaoAdicionar bool     `json:"ocultar_botao_adicionar"`
}

// Session is the per-page-view session state. It has a single writer (the
// session resolver); everything else reads copies.
type Session struct {
	User          *UserProfile
	Menus         []Menu
	AllowedPages  []string
	HideAddButton bool
	Loaded        bool
}

// ChatMessage is one entry of an in-memory chat conversation
type ChatMessage struct {
	Texto string   `json:"texto"`
	Role  ChatRole `json:"role"`
	Fonte string   `json:"fonte,omitempty"`
}

// ChatReply is the assistant backend's response payload
type ChatReply struct {
	Resposta   string `json:"resposta"`
	SessaoID   string `json:"sessao_id"`
	FonteDados string `json:"fonte_dados,omitempty"`
}

// Fornecedor is a supplier record as delivered by GET /fornecedores
type Fornecedor struct {
	ID       int64  `json:"id"`
	Nome     string `json:"nome"`
	CNPJ     string `json:"cnpj,omitempty"`
	Telefone string `json:"telefone,omitempty"`
}

// PrecoResponse carries the per-kg price for a supplier and plate type
type PrecoResponse struct {
	PrecoPorKg float64 `json:"preco_por_kg"`
}

// UnreadCount is the payload of GET /notificacoes/nao-lidas
type UnreadCount struct {
	Count int `json:"count"`
}

// ConferenciaStats is the payload of GET /conferencia/estatisticas
type ConferenciaStats struct {
	Pendentes     int `json:"pendentes"`
	Divergentes   int `json:"divergentes"`
	AguardandoAdm int `json:"aguardando_adm"`
	Aprovadas     int `json:"aprovadas"`
	Rejeitadas    int `json:"rejeitadas"`
}

// Conferencia is one incoming-goods reconciliation record
type Conferencia struct {
	ID            int64             `json:"id"`
	FornecedorID  int64             `json:"fornecedor_id"`
	PesoDeclarado float64           `json:"peso_declarado"`
	PesoMedido    float64           `json:"peso_medido"`
	Status        ConferenciaStatus `json:"status"`
}

// PlacaRegistro is the multipart payload of POST /placas
type PlacaRegistro struct {
	FornecedorID     string
	TipoPlaca        string
	PesoKg           string
	Valor            string
	Imagem           []byte
	ImagemNome       string
	LocalizacaoLat   string
	LocalizacaoLng   string
	EnderecoCompleto string
}
