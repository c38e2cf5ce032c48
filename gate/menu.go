package gate

import (
	"strings"

	"github.com/mrxdeploy/SistemaMRX/models"
)

// iconClasses maps the backend's Material icon names to the Font Awesome
// classes the mobile navigation renders
var iconClasses = map[string]string{
	"settings":                "fas fa-cog",
	"dashboard":               "fas fa-chart-pie",
	"request_quote":           "fas fa-file-invoice",
	"business":                "fas fa-building",
	"input":                   "fas fa-sign-in-alt",
	"fact_check":              "fas fa-check-double",
	"inventory_2":             "fas fa-warehouse",
	"format_list_bulleted":    "fas fa-list",
	"local_shipping":          "fas fa-truck",
	"notifications":           "fas fa-bell",
	"receipt_long":            "fas fa-receipt",
	"verified":                "fas fa-shield-alt",
	"warehouse":               "fas fa-warehouse",
	"precision_manufacturing": "fas fa-industry",
}

const defaultIconClass = "fas fa-circle"

// MenuItem is one rendered navigation entry
type MenuItem struct {
	ID     string `json:"id"`
	Nome   string `json:"nome"`
	URL    string `json:"url"`
	Icon   string `json:"icone"`
	Active bool   `json:"ativo"`
}

// MenuView is the navigation ready for rendering. FABIndex is the item
// after which the floating action button sits, or -1 when the button is
// hidden or there is nothing to render.
type MenuView struct {
	Items    []MenuItem `json:"itens"`
	FABIndex int        `json:"indice_fab"`
}

// BuildMenuView shapes the session's menus for the given page. The FAB
// lands after item floor((n-1)/2) so it stays visually centered: 2 items
// put it after the first, 4 after the second, 5 after the third.
func BuildMenuView(sess models.Session, currentPath string) MenuView {
	menus := sess.Menus
	view := MenuView{FABIndex: -1}
	if len(menus) == 0 {
		return view
	}

	view.Items = make([]MenuItem, 0, len(menus))
	for _, menu := range menus {
		icon, ok := iconClasses[menu.Icone]
		if !ok {
			icon = defaultIconClass
		}
		view.Items = append(view.Items, MenuItem{
			ID:     menu.ID,
			Nome:   menu.Nome,
			URL:    menu.URL,
			Icon:   icon,
			Active: menu.URL != "" && (currentPath == menu.URL || strings.Contains(currentPath, menu.URL)),
		})
	}

	if !sess.HideAddButton {
		view.FABIndex = (len(menus) - 1) / 2
	}
	return view
}
