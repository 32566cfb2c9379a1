package admin

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"portalsalud/internal/models"
)

const requestsPerPage = 50

type countRow struct {
	Label string
	Count int64
}

type activeUserRow struct {
	UserID uint
	Count  int64
	Email  string
}

// dashboard renders the aggregate overview.
func (a *Admin) dashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	startOfWeek := today.AddDate(0, 0, -(weekday - 1))

	var totalUsers, totalGestiones, totalFacturas, totalRequests, requestsToday, requestsThisWeek int64
	a.db.Model(&models.User{}).Count(&totalUsers)
	a.db.Model(&models.Gestion{}).Count(&totalGestiones)
	a.db.Model(&models.Factura{}).Count(&totalFacturas)
	a.db.Model(&models.RequestLog{}).Count(&totalRequests)
	a.db.Model(&models.RequestLog{}).Where("created_at >= ?", today).Count(&requestsToday)
	a.db.Model(&models.RequestLog{}).Where("created_at >= ?", startOfWeek).Count(&requestsThisWeek)

	var avgResponse float64
	a.db.Model(&models.RequestLog{}).Select("COALESCE(AVG(response_time), 0)").Scan(&avgResponse)

	var recent []models.RequestLog
	a.db.Preload("User").Order("created_at desc").Limit(10).Find(&recent)

	var byMethod []countRow
	a.db.Model(&models.RequestLog{}).Select("method AS label, COUNT(*) AS count").
		Group("method").Order("count desc").Scan(&byMethod)

	var byStatus []countRow
	a.db.Model(&models.RequestLog{}).Select("CAST(status_code AS TEXT) AS label, COUNT(*) AS count").
		Group("status_code").Order("count desc").Limit(10).Scan(&byStatus)

	var topRoutes []countRow
	a.db.Model(&models.RequestLog{}).Select("path AS label, COUNT(*) AS count").
		Group("path").Order("count desc").Limit(10).Scan(&topRoutes)

	var activeUsers []activeUserRow
	a.db.Model(&models.RequestLog{}).
		Select("request_logs.user_id AS user_id, COUNT(*) AS count, users.email AS email").
		Joins("JOIN users ON users.id = request_logs.user_id").
		Where("request_logs.user_id IS NOT NULL").
		Group("request_logs.user_id, users.email").
		Order("count desc").Limit(10).Scan(&activeUsers)

	var migrations []models.Migration
	a.db.Order("id desc").Find(&migrations)

	var cacheEntries []models.CacheEntry
	a.db.Order("expiration desc").Limit(20).Find(&cacheEntries)

	var pendingJobs, failedJobs int64
	a.db.Model(&models.Job{}).Count(&pendingJobs)
	a.db.Model(&models.FailedJob{}).Count(&failedJobs)

	a.render(w, "dashboard", map[string]any{
		"TotalUsers":       totalUsers,
		"TotalGestiones":   totalGestiones,
		"TotalFacturas":    totalFacturas,
		"TotalRequests":    totalRequests,
		"RequestsToday":    requestsToday,
		"RequestsThisWeek": requestsThisWeek,
		"AvgResponseTime":  int(avgResponse),
		"Recent":           recent,
		"ByMethod":         byMethod,
		"ByStatus":         byStatus,
		"TopRoutes":        topRoutes,
		"ActiveUsers":      activeUsers,
		"Migrations":       migrations,
		"CacheEntries":     cacheEntries,
		"PendingJobs":      pendingJobs,
		"FailedJobs":       failedJobs,
		"Success":          r.URL.Query().Get("success"),
	})
}

// requests renders the paginated, filterable log browser.
func (a *Admin) requests(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := a.db.Model(&models.RequestLog{})

	if m := qs.Get("method"); m != "" {
		q = q.Where("method = ?", m)
	}
	if s := qs.Get("status_code"); s != "" {
		q = q.Where("status_code = ?", s)
	}
	if p := qs.Get("path"); p != "" {
		q = q.Where("path LIKE ?", "%"+p+"%")
	}
	if from := qs.Get("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			q = q.Where("created_at >= ?", t)
		}
	}
	if to := qs.Get("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			q = q.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}

	page, _ := strconv.Atoi(qs.Get("page"))
	if page < 1 {
		page = 1
	}
	var total int64
	q.Count(&total)

	var logs []models.RequestLog
	q.Preload("User").Order("created_at desc").
		Limit(requestsPerPage).Offset((page - 1) * requestsPerPage).Find(&logs)

	lastPage := int((total + requestsPerPage - 1) / requestsPerPage)
	a.render(w, "requests", map[string]any{
		"Logs":     logs,
		"Total":    total,
		"Page":     page,
		"LastPage": lastPage,
		"Filters": map[string]string{
			"method": qs.Get("method"), "status_code": qs.Get("status_code"),
			"path": qs.Get("path"), "date_from": qs.Get("date_from"), "date_to": qs.Get("date_to"),
		},
		"Success": qs.Get("success"),
	})
}

func (a *Admin) requestDetail(w http.ResponseWriter, r *http.Request) {
	var log models.RequestLog
	if err := a.db.Preload("User").First(&log, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
		http.NotFound(w, r)
		return
	}
	a.render(w, "request_detail", map[string]any{"Log": log})
}

func (a *Admin) migrations(w http.ResponseWriter, r *http.Request) {
	var migrations []models.Migration
	a.db.Order("id desc").Find(&migrations)
	a.render(w, "migrations", map[string]any{"Migrations": migrations})
}

func (a *Admin) cacheEntries(w http.ResponseWriter, r *http.Request) {
	var entries []models.CacheEntry
	a.db.Order("expiration desc").Find(&entries)
	a.render(w, "cache", map[string]any{
		"Entries": entries,
		"Now":     time.Now().Unix(),
		"Success": r.URL.Query().Get("success"),
	})
}

func (a *Admin) jobs(w http.ResponseWriter, r *http.Request) {
	var pending []models.Job
	a.db.Order("created_at desc").Find(&pending)
	var failed []models.FailedJob
	a.db.Order("failed_at desc").Find(&failed)
	a.render(w, "jobs", map[string]any{"Pending": pending, "Failed": failed})
}

// clearCache flushes every cache row.
func (a *Admin) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := a.cache.Flush(); err != nil {
		a.lg.Errorw("cache flush failed", "error", err)
		http.Redirect(w, r, "/admin/dashboard?error="+url.QueryEscape("No se pudo limpiar el cache"), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/admin/dashboard?success="+url.QueryEscape("Cache limpiado exitosamente"), http.StatusFound)
}

// clearOldLogs purges request logs older than N days (default 30).
func (a *Admin) clearOldLogs(w http.ResponseWriter, r *http.Request) {
	days := 30
	if err := r.ParseForm(); err == nil {
		if n, err := strconv.Atoi(r.PostFormValue("days")); err == nil && n > 0 {
			days = n
		}
	}
	res := a.db.Where("created_at < ?", time.Now().AddDate(0, 0, -days)).Delete(&models.RequestLog{})
	if res.Error != nil {
		a.lg.Errorw("log purge failed", "error", res.Error)
		http.Redirect(w, r, "/admin/requests?error="+url.QueryEscape("No se pudieron eliminar los logs"), http.StatusFound)
		return
	}
	msg := "Se eliminaron " + strconv.FormatInt(res.RowsAffected, 10) + " logs antiguos (más de " + strconv.Itoa(days) + " días)"
	http.Redirect(w, r, "/admin/requests?success="+url.QueryEscape(msg), http.StatusFound)
}
