// Package instrument holds the Prometheus counters of the ratchet.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesEncrypted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "doubleratchet_messages_encrypted_total",
			Help: "Number of encrypted messages",
		},
	)
	messagesDecrypted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doubleratchet_messages_decrypted_total",
			Help: "Number of decrypted messages per decrypt branch",
		},
		[]string{"branch"},
	)
	decryptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doubleratchet_decrypt_failures_total",
			Help: "Number of failed decryptions per reason",
		},
		[]string{"reason"},
	)
	skippedKeysStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "doubleratchet_skipped_keys_stored_total",
			Help: "Number of skipped message keys written to a key store",
		},
	)
	dhRatchetSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "doubleratchet_dh_ratchet_steps_total",
			Help: "Number of DH ratchet steps taken on the send or receive side",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesEncrypted)
	prometheus.MustRegister(messagesDecrypted)
	prometheus.MustRegister(decryptFailures)
	prometheus.MustRegister(skippedKeysStored)
	prometheus.MustRegister(dhRatchetSteps)
}

// WriteTextfile writes the registered metrics to f in the text exposition format, for
// the node exporter textfile collector.
func WriteTextfile(f string) error {
	return prometheus.WriteToTextfile(f, prometheus.DefaultGatherer)
}

// Encrypted increments the counter for encrypted messages.
func Encrypted() {
	messagesEncrypted.Inc()
}

// Decrypted increments the counter for messages decrypted through branch.
func Decrypted(branch string) {
	messagesDecrypted.With(prometheus.Labels{"branch": branch}).Inc()
}

// DecryptFailed increments the counter for failed decryptions.
func DecryptFailed(reason string) {
	decryptFailures.With(prometheus.Labels{"reason": reason}).Inc()
}

// SkippedKeysStored adds n to the counter of stored skipped keys.
func SkippedKeysStored(n int) {
	if n > 0 {
		skippedKeysStored.Add(float64(n))
	}
}

// DHRatchetStep increments the counter for DH ratchet steps.
func DHRatchetStep() {
	dhRatchetSteps.Inc()
}
