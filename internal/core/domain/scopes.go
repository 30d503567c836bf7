package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Google Workspace OAuth2 scopes.
const (
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeCalendarEvents   = "https://www.googleapis.com/auth/calendar.events"
	ScopeCalendar         = "https://www.googleapis.com/auth/calendar"

	ScopeGmailReadonly = "https://www.googleapis.com/auth/gmail.readonly"
	ScopeGmailSend     = "https://www.googleapis.com/auth/gmail.send"
	ScopeGmailModify   = "https://www.googleapis.com/auth/gmail.modify"
	ScopeGmailCompose  = "https://www.googleapis.com/auth/gmail.compose"
	ScopeGmailFull     = "https://mail.google.com/"

	ScopeDriveReadonly = "https://www.googleapis.com/auth/drive.readonly"
	ScopeDriveFile     = "https://www.googleapis.com/auth/drive.file"
	ScopeDriveAppdata  = "https://www.googleapis.com/auth/drive.appdata"
	ScopeDriveMetadata = "https://www.googleapis.com/auth/drive.metadata"
	ScopeDrive         = "https://www.googleapis.com/auth/drive"

	ScopeSheetsReadonly = "https://www.googleapis.com/auth/spreadsheets.readonly"
	ScopeSheets         = "https://www.googleapis.com/auth/spreadsheets"

	ScopeDocsReadonly = "https://www.googleapis.com/auth/documents.readonly"
	ScopeDocs         = "https://www.googleapis.com/auth/documents"

	ScopeAdminDirectoryUser  = "https://www.googleapis.com/auth/admin.directory.user"
	ScopeAdminDirectoryGroup = "https://www.googleapis.com/auth/admin.directory.group"

	ScopePeopleContacts         = "https://www.googleapis.com/auth/contacts"
	ScopePeopleContactsReadonly = "https://www.googleapis.com/auth/contacts.readonly"

	ScopeTasks         = "https://www.googleapis.com/auth/tasks"
	ScopeTasksReadonly = "https://www.googleapis.com/auth/tasks.readonly"

	ScopeKeep         = "https://www.googleapis.com/auth/keep"
	ScopeKeepReadonly = "https://www.googleapis.com/auth/keep.readonly"

	ScopeUserinfoEmail   = "https://www.googleapis.com/auth/userinfo.email"
	ScopeUserinfoProfile = "https://www.googleapis.com/auth/userinfo.profile"
	ScopeOpenID          = "openid"
)

// Access levels shared by most services.
const (
	AccessReadonly = "readonly"
	AccessFull     = "full"
)

// scopeTable maps service -> access level -> scopes.
var scopeTable = map[string]map[string][]string{
	"calendar": {
		AccessReadonly: {ScopeCalendarReadonly},
		"events":       {ScopeCalendarEvents},
		AccessFull:     {ScopeCalendar},
	},
	"gmail": {
		AccessReadonly: {ScopeGmailReadonly},
		"send":         {ScopeGmailSend},
		"modify":       {ScopeGmailModify},
		"compose":      {ScopeGmailCompose},
		AccessFull:     {ScopeGmailFull},
	},
	"drive": {
		AccessReadonly: {ScopeDriveReadonly},
		"file":         {ScopeDriveFile},
		"appdata":      {ScopeDriveAppdata},
		"metadata":     {ScopeDriveMetadata},
		AccessFull:     {ScopeDrive},
	},
	"sheets": {
		AccessReadonly: {ScopeSheetsReadonly},
		AccessFull:     {ScopeSheets},
	},
	"docs": {
		AccessReadonly: {ScopeDocsReadonly},
		AccessFull:     {ScopeDocs},
	},
	"admin": {
		"user":     {ScopeAdminDirectoryUser},
		"group":    {ScopeAdminDirectoryGroup},
		AccessFull: {ScopeAdminDirectoryUser, ScopeAdminDirectoryGroup},
	},
	"people": {
		AccessReadonly:      {ScopeUserinfoProfile},
		"contacts":          {ScopePeopleContacts},
		"contacts_readonly": {ScopePeopleContactsReadonly},
		AccessFull:          {ScopeUserinfoProfile, ScopePeopleContacts},
	},
	"tasks": {
		AccessReadonly: {ScopeTasksReadonly},
		AccessFull:     {ScopeTasks},
	},
	"keep": {
		AccessReadonly: {ScopeKeepReadonly},
		AccessFull:     {ScopeKeep},
	},
	"userinfo": {
		AccessReadonly: {ScopeUserinfoEmail, ScopeUserinfoProfile, ScopeOpenID},
	},
}

// DefaultScopes are requested when the caller names no scopes.
var DefaultScopes = []string{
	ScopeCalendarReadonly,
	ScopeGmailReadonly,
	ScopeDriveReadonly,
	ScopeUserinfoEmail,
	ScopeUserinfoProfile,
	ScopeOpenID,
}

// Services returns the service names with a scope table, sorted.
func Services() []string {
	names := make([]string, 0, len(scopeTable))
	for name := range scopeTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceScopes returns the scopes for a service at the given access level.
func ServiceScopes(service, level string) ([]string, error) {
	levels, ok := scopeTable[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	scopes, ok := levels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %q for service %q", ErrUnknownAccessLevel, level, service)
	}
	return append([]string(nil), scopes...), nil
}

// AllScopes returns every known scope grouped by service.
func AllScopes() map[string][]string {
	out := make(map[string][]string, len(scopeTable))
	for service, levels := range scopeTable {
		seen := make(map[string]bool)
		var scopes []string
		for _, level := range sortedKeys(levels) {
			for _, s := range levels[level] {
				if !seen[s] {
					seen[s] = true
					scopes = append(scopes, s)
				}
			}
		}
		out[service] = scopes
	}
	return out
}

// ValidateScopes splits scopes into known and unknown, preserving order.
func ValidateScopes(scopes []string) (valid, invalid []string) {
	known := make(map[string]bool)
	for _, levels := range scopeTable {
		for _, list := range levels {
			for _, s := range list {
				known[s] = true
			}
		}
	}
	for _, s := range scopes {
		if known[s] {
			valid = append(valid, s)
		} else {
			invalid = append(invalid, s)
		}
	}
	return valid, invalid
}

// MapScopes resolves user supplied scope names into scope URLs.
//
// Entries starting with "https://" are taken as is. Other entries name a
// service, optionally with an access level ("gmail" or "gmail:send"); a bare
// service resolves to its readonly scopes. An empty input yields
// DefaultScopes. Duplicates are dropped keeping the first occurrence.
// Unresolvable names and unknown URLs are returned in skipped.
func MapScopes(scopes []string) (mapped, skipped []string) {
	if len(scopes) == 0 {
		return append([]string(nil), DefaultScopes...), nil
	}

	var resolved []string
	for _, raw := range scopes {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "https://") || entry == ScopeOpenID {
			resolved = append(resolved, entry)
			continue
		}
		service, level, found := strings.Cut(entry, ":")
		if !found {
			level = AccessReadonly
		}
		list, err := ServiceScopes(strings.ToLower(service), level)
		if err != nil {
			skipped = append(skipped, entry)
			continue
		}
		resolved = append(resolved, list...)
	}

	seen := make(map[string]bool, len(resolved))
	unique := resolved[:0]
	for _, s := range resolved {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}

	valid, invalid := ValidateScopes(unique)
	return valid, append(skipped, invalid...)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
