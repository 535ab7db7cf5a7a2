// Package preflight provides readiness checks for the binaries, directories,
// and artifact store vidqueue depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll and CheckSystemDeps at startup and logs every
//     failed check before accepting work.
//   - The CLI "vidqueue check" command prints the same results, plus
//     CheckDaemon for the configured API address.
package preflight
