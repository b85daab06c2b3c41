// Package jwt issues and verifies short-lived step-up proofs: signed
// tokens stating that a face verification satisfied a step-up challenge
// bound to one primary session.
//
// Proofs carry no authority of their own. Callers must still confirm that
// the referenced challenge exists, since ending the primary session
// destroys it.
package jwt
