// Package fileutil holds small filesystem helpers shared by the artifact store
// and pipeline cleanup.
package fileutil
