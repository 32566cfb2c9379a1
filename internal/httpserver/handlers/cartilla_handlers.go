package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/cache"
	"portalsalud/internal/models"
)

// cartillaCacheTTL covers the directory reference lists, which change only
// when the cartilla is reloaded.
const cartillaCacheTTL = 10 * time.Minute

// Provinces lists every province, cached.
// GET /api/cartilla/provinces
func Provinces(db *gorm.DB, lg *zap.SugaredLogger, c *cache.Store) http.HandlerFunc {
	type province struct {
		ID     uint   `json:"id"`
		Nombre string `json:"nombre"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := c.Get("cartilla:provinces"); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
			return
		}
		var provinces []province
		if err := db.Model(&models.Province{}).Order("nombre").Find(&provinces).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		body, _ := json.Marshal(map[string]any{"provinces": provinces})
		if err := c.Put("cartilla:provinces", body, cartillaCacheTTL); err != nil {
			lg.Warnw("cartilla cache write failed", "key", "cartilla:provinces", "error", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// Localidades lists localities, optionally scoped to one province.
// GET /api/cartilla/localidades?province_id=1
func Localidades(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	type localidad struct {
		ID         uint   `json:"id"`
		Nombre     string `json:"nombre"`
		ProvinceID uint   `json:"provinceId,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Model(&models.Localidad{}).Order("nombre")
		if pid := r.URL.Query().Get("province_id"); pid != "" {
			q = q.Where("province_id = ?", pid)
		}
		var localidades []localidad
		if err := q.Find(&localidades).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"localidades": localidades})
	}
}

// Specialties lists specialties, optionally filtered by provider tipo.
// GET /api/cartilla/specialties?type=medic
func Specialties(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	type specialty struct {
		ID     uint   `json:"id"`
		Nombre string `json:"nombre"`
		Tipo   string `json:"tipo"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Model(&models.Specialty{}).Order("nombre")
		if tipo := r.URL.Query().Get("type"); tipo != "" {
			q = q.Where("tipo = ?", tipo)
		}
		var specialties []specialty
		if err := q.Find(&specialties).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"specialties": specialties})
	}
}

// providerQuery assembles the shared filter set: tipo, localidad name,
// specialty name and plan tier.
func providerQuery(db *gorm.DB, tipo, localidad, specialty, plan string) *gorm.DB {
	q := db.Model(&models.Provider{}).Preload("Localidad").Preload("Specialties")
	if tipo != "" {
		q = q.Where("tipo = ?", tipo)
	}
	if localidad != "" {
		q = q.Where("localidad_id IN (?)",
			db.Model(&models.Localidad{}).Select("id").Where("nombre = ?", localidad))
	}
	if specialty != "" {
		q = q.Where("id IN (?)",
			db.Table("provider_specialty").Select("provider_specialty.provider_id").
				Joins("JOIN specialties ON specialties.id = provider_specialty.specialty_id").
				Where("specialties.nombre = ?", specialty))
	}
	if plan != "" {
		q = q.Where("id IN (?)",
			db.Model(&models.ProviderPlan{}).Select("provider_id").Where("plan = ?", plan))
	}
	return q
}

func localidadNombre(p *models.Provider) any {
	if p.Localidad == nil {
		return nil
	}
	return p.Localidad.Nombre
}

// SearchProviders is the flat provider search.
// GET /api/cartilla/providers?type=...&specialty=...&localidad=...&plan=...
func SearchProviders(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		var providers []models.Provider
		err := providerQuery(db, qs.Get("type"), qs.Get("localidad"), qs.Get("specialty"), qs.Get("plan")).
			Find(&providers).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(providers))
		for i := range providers {
			p := &providers[i]
			out = append(out, map[string]any{
				"id":          p.ID,
				"nombre":      p.Nombre,
				"direccion":   p.Direccion,
				"telefono":    p.Telefono,
				"localidad":   localidadNombre(p),
				"institucion": p.Institucion,
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{"providers": out})
	}
}

// SearchProvidersGrouped groups matches by localidad and specialty, the
// shape the legacy frontend consumed.
// GET /api/cartilla/providers-grouped?type=...&localidad=...&plan=...
func SearchProvidersGrouped(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		var providers []models.Provider
		err := providerQuery(db, qs.Get("type"), qs.Get("localidad"), "", qs.Get("plan")).
			Find(&providers).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		grouped := map[string]map[string][]map[string]any{}
		for i := range providers {
			p := &providers[i]
			locName := "Sin localidad"
			if p.Localidad != nil {
				locName = p.Localidad.Nombre
			}
			if grouped[locName] == nil {
				grouped[locName] = map[string][]map[string]any{}
			}
			for _, s := range p.Specialties {
				grouped[locName][s.Nombre] = append(grouped[locName][s.Nombre], map[string]any{
					"nombre":    p.Nombre,
					"direccion": p.Direccion,
					"telefono":  p.Telefono,
				})
			}
		}
		respondJSON(w, http.StatusOK, grouped)
	}
}

// SearchProfessionals searches medic providers, optionally by name or
// institution substring.
// GET /api/cartilla/professionals?specialty=...&localidad=...&nombre=...&plan=...
func SearchProfessionals(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		q := providerQuery(db, models.ProviderMedic, qs.Get("localidad"), qs.Get("specialty"), qs.Get("plan"))
		if nombre := qs.Get("nombre"); nombre != "" {
			like := "%" + nombre + "%"
			q = q.Where("nombre ILIKE ? OR institucion ILIKE ?", like, like)
		}
		var providers []models.Provider
		if err := q.Find(&providers).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(providers))
		for i := range providers {
			p := &providers[i]
			var especialidad any
			if len(p.Specialties) > 0 {
				especialidad = p.Specialties[0].Nombre
			}
			out = append(out, map[string]any{
				"id":           p.ID,
				"nombre":       p.Nombre,
				"especialidad": especialidad,
				"institucion":  p.Institucion,
				"direccion":    p.Direccion,
				"localidad":    localidadNombre(p),
				"telefono":     p.Telefono,
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{"professionals": out})
	}
}

// SearchPharmacies lists pharmacy providers.
// GET /api/cartilla/pharmacies?plan=...&localidad=...
func SearchPharmacies(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return searchByTipo(db, models.ProviderPharmacy, "pharmacies", true)
}

// SearchVaccines lists vaccination sites.
// GET /api/cartilla/vaccines?localidad=...
func SearchVaccines(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return searchByTipo(db, models.ProviderVaccine, "vaccines", false)
}

func searchByTipo(db *gorm.DB, tipo, key string, planFilter bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		plan := ""
		if planFilter {
			plan = qs.Get("plan")
		}
		var providers []models.Provider
		err := providerQuery(db, tipo, qs.Get("localidad"), "", plan).Find(&providers).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(providers))
		for i := range providers {
			p := &providers[i]
			out = append(out, map[string]any{
				"id":        p.ID,
				"nombre":    p.Nombre,
				"direccion": p.Direccion,
				"telefono":  p.Telefono,
				"localidad": localidadNombre(p),
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{key: out})
	}
}
