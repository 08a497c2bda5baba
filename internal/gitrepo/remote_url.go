package gitrepo

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	sshProtocolPrefixConstant           = "ssh://"
	sshUserDelimiterConstant            = "@"
	sshPathDelimiterConstant            = ":"
	httpsProtocolPrefixConstant         = "https://"
	httpProtocolPrefixConstant          = "http://"
	fileProtocolPrefixConstant          = "file://"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	requiredValueMessageConstant        = "value required"
)

// RemoteProtocol enumerates supported git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
	RemoteProtocolHTTP  RemoteProtocol = RemoteProtocol("http")
	RemoteProtocolFile  RemoteProtocol = RemoteProtocol("file")
)

// RemoteURL represents a structured git remote URL.
type RemoteURL struct {
	Protocol   RemoteProtocol
	Host       string
	Owner      string
	Repository string
}

// RequiresCredentials reports whether fetching from the remote may need authentication.
func (remote RemoteURL) RequiresCredentials() bool {
	return remote.Protocol != RemoteProtocolFile
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a textual remote URL into a structured representation.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	lowerRemote := strings.ToLower(trimmedRemote)
	switch {
	case strings.HasPrefix(lowerRemote, sshProtocolPrefixConstant):
		return parseSSHRemote(trimmedRemote[len(sshProtocolPrefixConstant):])
	case strings.HasPrefix(lowerRemote, httpsProtocolPrefixConstant):
		return parseHTTPRemote(RemoteProtocolHTTPS, trimmedRemote[len(httpsProtocolPrefixConstant):])
	case strings.HasPrefix(lowerRemote, httpProtocolPrefixConstant):
		return parseHTTPRemote(RemoteProtocolHTTP, trimmedRemote[len(httpProtocolPrefixConstant):])
	case strings.HasPrefix(lowerRemote, fileProtocolPrefixConstant):
		return parseFileRemote(trimmedRemote[len(fileProtocolPrefixConstant):])
	case filepath.IsAbs(trimmedRemote) || strings.HasPrefix(trimmedRemote, "."):
		return parseFileRemote(trimmedRemote)
	case strings.Contains(trimmedRemote, sshUserDelimiterConstant) && strings.Contains(trimmedRemote, sshPathDelimiterConstant):
		return parseSSHRemote(trimmedRemote)
	}

	return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
}

func parseSSHRemote(remote string) (RemoteURL, error) {
	userSplitIndex := strings.Index(remote, sshUserDelimiterConstant)
	hostAndPath := remote
	if userSplitIndex != -1 {
		hostAndPath = remote[userSplitIndex+1:]
	}
	pathSplitIndex := strings.Index(hostAndPath, sshPathDelimiterConstant)
	var host string
	var path string
	if pathSplitIndex == -1 {
		slashIndex := strings.Index(hostAndPath, pathSeparatorConstant)
		if slashIndex == -1 {
			return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		host = hostAndPath[:slashIndex]
		path = hostAndPath[slashIndex+1:]
	} else {
		host = hostAndPath[:pathSplitIndex]
		path = strings.TrimPrefix(hostAndPath[pathSplitIndex+1:], pathSeparatorConstant)
		if portSlashIndex := strings.Index(path, pathSeparatorConstant); portSlashIndex != -1 && isNumeric(path[:portSlashIndex]) {
			path = path[portSlashIndex+1:]
		}
	}
	if len(host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	owner, repository, parseError := splitOwnerAndRepository(path)
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, Host: strings.ToLower(host), Owner: owner, Repository: repository}, nil
}

func parseHTTPRemote(protocol RemoteProtocol, remote string) (RemoteURL, error) {
	if credentialsIndex := strings.Index(remote, sshUserDelimiterConstant); credentialsIndex != -1 {
		firstSlashIndex := strings.Index(remote, pathSeparatorConstant)
		if firstSlashIndex == -1 || credentialsIndex < firstSlashIndex {
			remote = remote[credentialsIndex+1:]
		}
	}
	pathComponents := strings.Split(strings.TrimSuffix(remote, pathSeparatorConstant), pathSeparatorConstant)
	if len(pathComponents) < 3 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	host := pathComponents[0]
	owner := pathComponents[1]
	repository, parseError := normalizeRepositoryName(strings.Join(pathComponents[2:], pathSeparatorConstant))
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: protocol, Host: strings.ToLower(host), Owner: owner, Repository: repository}, nil
}

func parseFileRemote(remote string) (RemoteURL, error) {
	cleaned := filepath.Clean(remote)
	repository, parseError := normalizeRepositoryName(filepath.Base(cleaned))
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolFile, Owner: filepath.Dir(cleaned), Repository: repository}, nil
}

func splitOwnerAndRepository(path string) (string, string, error) {
	segments := strings.Split(strings.TrimSuffix(path, pathSeparatorConstant), pathSeparatorConstant)
	if len(segments) < 2 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	repository, parseError := normalizeRepositoryName(strings.Join(segments[1:], pathSeparatorConstant))
	if parseError != nil {
		return "", "", parseError
	}
	if len(segments[0]) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	return segments[0], repository, nil
}

func normalizeRepositoryName(repository string) (string, error) {
	trimmed := strings.TrimSuffix(repository, gitSuffixConstant)
	if len(trimmed) == 0 || trimmed == "." || trimmed == pathSeparatorConstant {
		return "", RemoteURLParseError{Input: repository, Message: invalidRemoteURLMessageConstant}
	}
	return trimmed, nil
}

func isNumeric(candidate string) bool {
	if len(candidate) == 0 {
		return false
	}
	for _, character := range candidate {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
