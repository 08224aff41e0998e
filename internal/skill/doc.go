// Package skill holds the registered skill catalog and the HTTP forwarder
// that delivers activities to skill endpoints.
//
// The registry is immutable after startup; registration problems are fatal
// then, never per-turn. The forwarder treats any 2xx response as accepted
// and wraps everything else — non-2xx statuses and transport failures alike —
// in *SkillInvocationError. There are no retries: redelivery policy belongs
// to the caller.
package skill
