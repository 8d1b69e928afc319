package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ventasSincronizadas = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubpos",
		Subsystem: "sync",
		Name:      "ventas_total",
		Help:      "Offline sales processed, by result (SUCCESS, DUPLICATE, ERROR).",
	}, []string{"resultado"})

	loginsDispositivo = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubpos",
		Subsystem: "dispositivos",
		Name:      "logins_total",
		Help:      "Device authentication attempts, by method and outcome.",
	}, []string{"metodo", "resultado"})
)
