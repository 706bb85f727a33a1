package snapshot

import (
	"log/slog"
	"path"
	"strings"

	"github.com/oxmc/nexe/core/internal/manifest"
	"github.com/oxmc/nexe/core/internal/vpath"
)

// nodeModules is the conventional dependency store inside the archive.
const nodeModules = vpath.Root + "/node_modules"

// exportConditions is the ordered condition set used when resolving
// conditional exports.
var exportConditions = []string{"require", "node", "default"}

// probeExtensions are tried, in order, when a resolved target does not
// name an existing file.
var probeExtensions = []string{".js", ".json", ".node"}

// resolver implements package-entry resolution for bare specifiers over the
// overlay. It never fails loud: any internal error, a missing package and a
// malformed manifest included, yields "".
type resolver struct {
	overlay *Overlay
	logger  *slog.Logger
}

// resolve maps a bare specifier to an entry file under
// /snapshot/node_modules/<request>, or "" when nothing matches.
func (r *resolver) resolve(request string) string {
	base := nodeModules + "/" + request

	data, err := r.overlay.ReadFile(base + "/package.json")
	if err != nil {
		return ""
	}
	m, err := manifest.Parse(data)
	if err != nil {
		r.logger.Debug("resolver: bad manifest", "request", request, "error", err)
		return ""
	}

	if exports, ok := m.Field("exports"); ok {
		if hit := r.resolveExports(base, exports); hit != "" {
			r.logger.Debug("resolver: exports hit", "request", request, "path", hit)
			return hit
		}
	} else if hit := r.resolveMain(base, m); hit != "" {
		r.logger.Debug("resolver: main hit", "request", request, "path", hit)
		return hit
	}

	if p := base + "/index.js"; r.overlay.IsFile(p) {
		return p
	}
	if p := base + "/dist/index.js"; r.overlay.IsFile(p) {
		return p
	}
	if p := base + "/dist/" + request + ".js"; r.overlay.IsFile(p) {
		return p
	}

	r.logger.Debug("resolver: miss", "request", request)
	return ""
}

// resolveExports resolves the manifest's exports field against the ordered
// condition set. Objects are condition maps iterated in insertion order; a
// top-level "." subpath key is unwrapped first.
func (r *resolver) resolveExports(base string, exports manifest.Value) string {
	if exports.Kind() == manifest.KindObject {
		if dot, ok := exports.Field("."); ok {
			exports = dot
		}
	}
	target := selectTarget(exports)
	if target == "" {
		return ""
	}
	return r.probe(joinTarget(base, target))
}

// selectTarget walks a conditional exports value down to a literal subpath.
func selectTarget(v manifest.Value) string {
	switch v.Kind() {
	case manifest.KindString:
		return v.Str()
	case manifest.KindObject:
		for _, key := range v.Keys() {
			for _, cond := range exportConditions {
				if key == cond {
					child, _ := v.Field(key)
					return selectTarget(child)
				}
			}
		}
		if def, ok := v.Field("default"); ok {
			return selectTarget(def)
		}
	}
	return ""
}

// resolveMain resolves via the manifest's main field (default "index.js").
func (r *resolver) resolveMain(base string, m manifest.Value) string {
	main, ok := m.StringField("main")
	if !ok {
		main = "index.js"
	}
	main = strings.TrimPrefix(main, "./")
	if main == "" || main == "." {
		main = "index.js"
	}
	if strings.HasSuffix(main, "/") {
		main += "index.js"
	}

	joined := path.Join(base, main)
	if r.overlay.IsFile(joined) {
		return joined
	}
	if r.overlay.IsDir(joined) {
		if p := joined + "/index.js"; r.overlay.IsFile(p) {
			return p
		}
	}
	return r.probeExts(joined)
}

// probe returns p when it names a file, else the first extension hit.
func (r *resolver) probe(p string) string {
	if r.overlay.IsFile(p) {
		return p
	}
	return r.probeExts(p)
}

func (r *resolver) probeExts(p string) string {
	for _, ext := range probeExtensions {
		if cand := p + ext; r.overlay.IsFile(cand) {
			return cand
		}
	}
	return ""
}

// joinTarget resolves an exports target relative to the package base.
func joinTarget(base, target string) string {
	return path.Join(base, strings.TrimPrefix(target, "./"))
}

// isBareSpecifier reports whether request is neither relative, absolute,
// nor drive-lettered.
func isBareSpecifier(request string) bool {
	if request == "" {
		return false
	}
	if strings.HasPrefix(request, ".") ||
		strings.HasPrefix(request, "/") ||
		strings.HasPrefix(request, "\\") {
		return false
	}
	if len(request) >= 2 && request[1] == ':' && isDriveLetter(request[0]) {
		return false
	}
	return true
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
