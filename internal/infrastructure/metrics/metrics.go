package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "course_platform"

type Metrics struct {
	DeviceAdmissions         *prometheus.CounterVec
	DeviceAdmissionConflicts prometheus.Counter
	DevicesPruned            prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeviceAdmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_admissions_total",
			Help:      "Device admission decisions by action.",
		}, []string{"action"}),
		DeviceAdmissionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_admission_conflicts_total",
			Help:      "Admission transactions retried after a storage conflict.",
		}),
		DevicesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_pruned_total",
			Help:      "Devices removed by the stale-device job.",
		}),
	}
	reg.MustRegister(m.DeviceAdmissions, m.DeviceAdmissionConflicts, m.DevicesPruned)
	return m
}
