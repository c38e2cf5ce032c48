// Package geo resolves coordinates into street addresses through the
// public OpenStreetMap reverse-geocoding service. Lookups always succeed:
// any failure degrades to plain coordinates so plate registration is never
// blocked by the geocoder.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrxdeploy/SistemaMRX/monitoring"
	"github.com/mrxdeploy/SistemaMRX/utils"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// lookupTimeout bounds the whole reverse lookup
const lookupTimeout = 10 * time.Second

// Location is a resolved position ready for plate registration
type Location struct {
	Lat      float64
	Lng      float64
	Endereco string
}

type nominatimAddress struct {
	Road          string `json:"road"`
	Street        string `json:"street"`
	Pedestrian    string `json:"pedestrian"`
	HouseNumber   string `json:"house_number"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
}

type nominatimResponse struct {
	Address *nominatimAddress `json:"address"`
}

// Geocoder resolves coordinates against the OpenStreetMap mirror
type Geocoder struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeocoder creates a geocoder. The mirror comes from NOMINATIM_URL
// when set.
func NewGeocoder() *Geocoder {
	return &Geocoder{
		baseURL:    utils.GetEnvOrDefault("NOMINATIM_URL", defaultBaseURL),
		httpClient: &http.Client{Timeout: lookupTimeout},
	}
}

// Reverse resolves lat/lng into a formatted address. It never returns an
// error: failures and unresolvable positions yield the raw coordinates.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) Location {
	fallback := Location{Lat: lat, Lng: lng, Endereco: CoordinateAddress(lat, lng)}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lng))
	query.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(lookupCtx, http.MethodGet, g.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return fallback
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	monitoring.RecordExternalCall(ctx, "nominatim", "reverse", time.Since(start), err)
	if err != nil {
		slog.Warn("Falha na geocodificação reversa", "error", err)
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Geocodificação reversa retornou erro", "status", resp.StatusCode)
		return fallback
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Address == nil {
		return fallback
	}

	return Location{Lat: lat, Lng: lng, Endereco: formatAddress(payload.Address)}
}

// formatAddress renders the address in the fixed display shape:
// "rua, numero, bairro - cidade/estado - CEP: cep"
func formatAddress(addr *nominatimAddress) string {
	rua := firstNonEmpty(addr.Road, addr.Street, addr.Pedestrian, "Rua não identificada")
	numero := firstNonEmpty(addr.HouseNumber, "s/n")
	bairro := firstNonEmpty(addr.Neighbourhood, addr.Suburb, "")
	cidade := firstNonEmpty(addr.City, addr.Town, addr.Village, "")
	cep := firstNonEmpty(addr.Postcode, "CEP não disponível")

	var b strings.Builder
	b.WriteString(rua)
	b.WriteString(", ")
	b.WriteString(numero)
	if bairro != "" {
		b.WriteString(", ")
		b.WriteString(bairro)
	}
	fmt.Fprintf(&b, " - %s/%s - CEP: %s", cidade, addr.State, cep)
	return b.String()
}

// CoordinateAddress is the degraded form shown when no address resolves
func CoordinateAddress(lat, lng float64) string {
	return fmt.Sprintf("Coordenadas: %.6f, %.6f", lat, lng)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
