package ws

import (
	"fmt"
	"net/url"
	"regexp"
)

// WorkspaceKey identifies a workspace: one branch of one repository.
type WorkspaceKey struct {
	Owner  string
	Repo   string
	Branch string
}

func (k WorkspaceKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Owner, k.Repo, k.Branch)
}

// Ref addresses a single file on a branch of a remote repository.
type Ref struct {
	Owner  string
	Repo   string
	Branch string
	Path   string
}

// Key returns the workspace the file belongs to.
func (r Ref) Key() WorkspaceKey {
	return WorkspaceKey{Owner: r.Owner, Repo: r.Repo, Branch: r.Branch}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", r.Owner, r.Repo, r.Branch, r.Path)
}

// MalformedRefError reports a string that is not a file URL of the form
// .../{owner}/{repo}/(blob|edit)/{branch}/{path}.
type MalformedRefError struct {
	Raw string
}

func (e *MalformedRefError) Error() string {
	return fmt.Sprintf("not a repository file URL: %q", e.Raw)
}

// refPattern matches the path of a web URL pointing at a file, e.g.
// /asciidoctor/asciidoctor-intellij-plugin/edit/master/doc/index.adoc.
// The branch is the single segment after blob|edit; everything after it is the path.
var refPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/(?:blob|edit)/([^/]+)/(.+)$`)

// ParseRef extracts a Ref from a repository web URL. The host is not checked
// so enterprise installations work the same way as the public site.
func ParseRef(raw string) (Ref, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Ref{}, &MalformedRefError{Raw: raw}
	}

	m := refPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return Ref{}, &MalformedRefError{Raw: raw}
	}

	return Ref{Owner: m[1], Repo: m[2], Branch: m[3], Path: m[4]}, nil
}
