// Package types defines shared types used across researchflow packages:
// the unified error taxonomy and its helpers.
package types
