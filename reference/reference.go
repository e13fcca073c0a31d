package reference

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Host is the only recognized hosting provider.
const Host = "github.com"

var (
	httpsPattern = regexp.MustCompile(`^https?://github\.com/[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+/?.*$`)
	sshPattern   = regexp.MustCompile(`^git@github\.com:[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+\.git$`)
	treePattern  = regexp.MustCompile(`^(https?://github\.com/[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+)(/tree/([^/]+))(/.*)?$`)
)

// Reference identifies a remote repository, an optional branch and an optional
// subdirectory holding the logical sub-project.
type Reference struct {
	SourceURL    string
	CloneURL     string
	Organization string
	Repository   string
	Branch       string
	Subdirectory string
}

// FullName returns organization/repository.
func (r *Reference) FullName() string {
	return r.Organization + "/" + r.Repository
}

// APIURL returns the hosting provider API locator of the repository.
func (r *Reference) APIURL() string {
	return "https://api." + Host + "/repos/" + r.FullName()
}

func (r *Reference) String() string {
	ret := r.CloneURL
	if r.Branch != "" {
		ret += "@" + r.Branch
	}
	if r.Subdirectory != "" {
		ret += "//" + r.Subdirectory
	}
	return ret
}

// InvalidReferenceError is returned when a string is not a recognized repository URL.
type InvalidReferenceError struct {
	URL string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid repository reference: %q", e.URL)
}

// IsRepositoryURL reports whether URL has one of the accepted shapes.
func IsRepositoryURL(URL string) bool {
	return httpsPattern.MatchString(URL) || sshPattern.MatchString(URL)
}

// Resolve parses URL into a Reference. The tree form
// https://github.com/<org>/<repo>/tree/<branch>/<path> narrows the reference to
// a branch and subdirectory; the subdirectory's last segment then names the repository.
func Resolve(URL string) (*Reference, error) {
	if !IsRepositoryURL(URL) {
		return nil, &InvalidReferenceError{URL: URL}
	}
	ret := &Reference{SourceURL: URL, CloneURL: URL}
	clean := strings.TrimSuffix(URL, ".git")
	if strings.HasPrefix(clean, "git@") {
		parts := strings.SplitN(clean, ":", 2)
		if len(parts) == 2 {
			segments := strings.Split(parts[1], "/")
			if len(segments) >= 2 {
				ret.Organization = segments[0]
				ret.Repository = segments[1]
			}
		}
	} else {
		segments := strings.Split(clean, "/")
		for i, segment := range segments {
			if segment != Host {
				continue
			}
			if len(segments) > i+2 {
				ret.Organization = segments[i+1]
				ret.Repository = segments[i+2]
				scheme := strings.TrimSuffix(segments[0], ":")
				ret.CloneURL = scheme + "://" + Host + "/" + ret.Organization + "/" + ret.Repository
			}
			break
		}
	}

	if match := treePattern.FindStringSubmatch(URL); match != nil {
		ret.CloneURL = match[1]
		ret.Branch = match[3]
		if subdirectory := strings.Trim(match[4], "/"); subdirectory != "" {
			ret.Subdirectory = subdirectory
			ret.Repository = path.Base(subdirectory)
		}
	}
	return ret, nil
}
