// Package certs manages the certificate authorities of a Kafka cluster and the
// leaf certificates they sign.
//
// An Authority is persisted as two Secrets: one holding the public certificate
// (plus the previous one while an overlap window is open) and one holding the
// private key. Generation counts key replacements; renewing a certificate
// keeps both the key and the generation.
//
// The Manager is a pure function of its inputs and an injected clock, so a
// pass that fails between generating and persisting material converges when
// it runs again.
package certs
