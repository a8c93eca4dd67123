package prommonitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DaoCloud/listcache/api"
)

const (
	ComponentMetricsLabel string = "component"
	ListServerComponent   string = "listserver"
	ListCliComponent      string = "listcli"
)

var (
	Up = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "up",
		Help: "Component up status",
	}, []string{ComponentMetricsLabel})
	ConfigReload = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_reload_config_total",
		Help: "Config reload count",
	}, []string{"status"})
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_requests_total",
		Help: "Requests count",
	}, []string{"collection", "status"})
	Resources = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listcache_resources_total",
		Help: "resources count",
	}, []string{"collection"})
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_fetch_total",
		Help: "Page fetches issued by list views",
	}, []string{"view", "result"})
	CacheWipes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_cache_wipes_total",
		Help: "Full cache wipes",
	}, []string{"view", "reason"})
	StaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_stale_responses_total",
		Help: "Responses dropped because the query key changed",
	}, []string{"view"})
	Materializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_materialize_total",
		Help: "Window materializations",
	}, []string{"view", "result"})
	DebounceReplaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listcache_debounce_replaced_total",
		Help: "Pending fetches cancelled by a newer request",
	}, []string{"view"})
)

func PromHandler(r *api.ReqContext) interface{} {
	promhttp.Handler().ServeHTTP(r.Writer, r.Request)

	return nil
}
