package core

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// placeholderMaxDepth bounds recursive placeholder resolution so cyclic
// references terminate.
const placeholderMaxDepth = 10

// placeholderRegexp matches the innermost brace-delimited tokens.
var placeholderRegexp = regexp.MustCompile(`\{[^{}]+\}`)

type placeholderType int

const (
	placeholderNone placeholderType = iota
	placeholderUnknown
	placeholderTitle
	placeholderUserName
	placeholderPassword
	placeholderNotes
	placeholderURL
	placeholderTotp
	placeholderCustomAttribute
	placeholderReference
	placeholderURLWithoutScheme
	placeholderURLScheme
	placeholderURLHost
	placeholderURLPort
	placeholderURLPath
	placeholderURLQuery
	placeholderURLFragment
	placeholderURLUserInfo
	placeholderURLUserName
	placeholderURLPassword
)

// fieldLetter maps a default attribute key to its reference letter.
func fieldLetter(key string) string {
	switch key {
	case TitleKey:
		return "T"
	case UserNameKey:
		return "U"
	case PasswordKey:
		return "P"
	case URLKey:
		return "A"
	case NotesKey:
		return "N"
	}
	return ""
}

// fieldKey is the inverse of fieldLetter; "I" has no attribute key.
func fieldKey(letter string) string {
	switch strings.ToUpper(letter) {
	case "T":
		return TitleKey
	case "U":
		return UserNameKey
	case "P":
		return PasswordKey
	case "A":
		return URLKey
	case "N":
		return NotesKey
	}
	return ""
}

// BuildReference renders a cross-entry reference placeholder pointing
// at the given field of the entry with the given uuid.
func BuildReference(id uuid.UUID, fieldKey string) string {
	letter := fieldLetter(fieldKey)
	assertf(letter != "", "cannot reference field %s", fieldKey)
	hexID := strings.ToUpper(hex.EncodeToString(id[:]))
	return "{REF:" + letter + "@I:" + hexID + "}"
}

func (e *Entry) placeholderType(placeholder string) placeholderType {
	if !strings.HasPrefix(placeholder, "{") || !strings.HasSuffix(placeholder, "}") {
		return placeholderNone
	}
	inner := placeholder[1 : len(placeholder)-1]
	upper := strings.ToUpper(inner)

	switch {
	case strings.HasPrefix(upper, "S:"):
		return placeholderCustomAttribute
	case strings.HasPrefix(upper, "REF:"):
		return placeholderReference
	}

	switch upper {
	case "TITLE":
		return placeholderTitle
	case "USERNAME":
		return placeholderUserName
	case "PASSWORD":
		return placeholderPassword
	case "NOTES":
		return placeholderNotes
	case "TOTP":
		return placeholderTotp
	case "URL":
		return placeholderURL
	case "URL:RMVSCM", "URL:WITHOUTSCHEME":
		return placeholderURLWithoutScheme
	case "URL:SCM", "URL:SCHEME":
		return placeholderURLScheme
	case "URL:HOST":
		return placeholderURLHost
	case "URL:PORT":
		return placeholderURLPort
	case "URL:PATH":
		return placeholderURLPath
	case "URL:QUERY":
		return placeholderURLQuery
	case "URL:FRAGMENT":
		return placeholderURLFragment
	case "URL:USERINFO":
		return placeholderURLUserInfo
	case "URL:USERNAME":
		return placeholderURLUserName
	case "URL:PASSWORD":
		return placeholderURLPassword
	}
	return placeholderUnknown
}

// ResolvePlaceholder resolves a single placeholder token.
func (e *Entry) ResolvePlaceholder(placeholder string) string {
	return e.resolvePlaceholderRecursive(placeholder, placeholderMaxDepth)
}

// ResolveMultiplePlaceholders substitutes every placeholder in str,
// re-resolving as long as substitution makes progress, up to the depth
// ceiling.
func (e *Entry) ResolveMultiplePlaceholders(str string) string {
	return e.resolveMultiplePlaceholdersRecursive(str, placeholderMaxDepth)
}

func (e *Entry) resolveMultiplePlaceholdersRecursive(str string, maxDepth int) string {
	if maxDepth <= 0 {
		return str
	}

	result := placeholderRegexp.ReplaceAllStringFunc(str, func(token string) string {
		return e.resolvePlaceholderRecursive(token, maxDepth-1)
	})
	if result != str {
		// substitution may have produced new placeholders
		result = e.resolveMultiplePlaceholdersRecursive(result, maxDepth-1)
	}
	return result
}

func (e *Entry) resolvePlaceholderRecursive(placeholder string, maxDepth int) string {
	if maxDepth <= 0 {
		return placeholder
	}

	switch e.placeholderType(placeholder) {
	case placeholderNone, placeholderUnknown:
		return placeholder
	case placeholderTitle:
		if e.placeholderType(e.Title()) == placeholderTitle {
			return e.Title()
		}
		return e.resolveMultiplePlaceholdersRecursive(e.Title(), maxDepth-1)
	case placeholderUserName:
		if e.placeholderType(e.Username()) == placeholderUserName {
			return e.Username()
		}
		return e.resolveMultiplePlaceholdersRecursive(e.Username(), maxDepth-1)
	case placeholderPassword:
		if e.placeholderType(e.Password()) == placeholderPassword {
			return e.Password()
		}
		return e.resolveMultiplePlaceholdersRecursive(e.Password(), maxDepth-1)
	case placeholderNotes:
		if e.placeholderType(e.Notes()) == placeholderNotes {
			return e.Notes()
		}
		return e.resolveMultiplePlaceholdersRecursive(e.Notes(), maxDepth-1)
	case placeholderURL:
		if e.placeholderType(e.URL()) == placeholderURL {
			return e.URL()
		}
		return e.resolveMultiplePlaceholdersRecursive(e.URL(), maxDepth-1)
	case placeholderTotp:
		// one-time codes never recurse
		code, err := e.Totp()
		if err != nil {
			return ""
		}
		return code
	case placeholderCustomAttribute:
		key := placeholder[len("{S:") : len(placeholder)-1]
		if !e.attributes.HasKey(key) {
			return placeholder
		}
		return e.resolveMultiplePlaceholdersRecursive(e.attributes.Value(key), maxDepth-1)
	case placeholderReference:
		return e.resolveReferencePlaceholderRecursive(placeholder, maxDepth)
	default:
		return e.resolveURLPlaceholder(placeholder, maxDepth)
	}
}

func (e *Entry) resolveURLPlaceholder(placeholder string, maxDepth int) string {
	resolved := e.resolveMultiplePlaceholdersRecursive(e.URL(), maxDepth-1)
	u, err := url.Parse(resolved)
	if err != nil {
		return ""
	}

	switch e.placeholderType(placeholder) {
	case placeholderURLWithoutScheme:
		return strings.TrimPrefix(strings.TrimPrefix(resolved, u.Scheme+":"), "//")
	case placeholderURLScheme:
		return u.Scheme
	case placeholderURLHost:
		return u.Hostname()
	case placeholderURLPort:
		return u.Port()
	case placeholderURLPath:
		return u.Path
	case placeholderURLQuery:
		if u.RawQuery == "" {
			return ""
		}
		return "?" + u.RawQuery
	case placeholderURLFragment:
		if u.Fragment == "" {
			return ""
		}
		return "#" + u.Fragment
	case placeholderURLUserInfo:
		if u.User == nil {
			return ""
		}
		return u.User.String()
	case placeholderURLUserName:
		if u.User == nil {
			return ""
		}
		return u.User.Username()
	case placeholderURLPassword:
		if u.User == nil {
			return ""
		}
		password, _ := u.User.Password()
		return password
	}
	return placeholder
}

func (e *Entry) resolveReferencePlaceholderRecursive(placeholder string, maxDepth int) string {
	match := MatchReference(placeholder)
	if match == nil {
		return placeholder
	}
	db := e.Database()
	if db == nil || db.RootGroup() == nil {
		return ""
	}

	target := findEntryByReference(db.RootGroup(), match.SearchIn, match.SearchText)
	if target == nil {
		// a dangling reference resolves to nothing
		return ""
	}

	key := fieldKey(match.WantedField)
	if key == "" {
		// "I" wants the uuid itself
		return strings.ToUpper(hex.EncodeToString(target.uuid[:]))
	}
	return target.resolveMultiplePlaceholdersRecursive(target.attributes.Value(key), maxDepth-1)
}

// findEntryByReference walks the tree depth-first and returns the first
// entry whose referenced field equals text case-insensitively.
func findEntryByReference(group *Group, searchIn, text string) *Entry {
	for _, entry := range group.entries {
		if entryMatchesReference(entry, searchIn, text) {
			return entry
		}
	}
	for _, child := range group.children {
		if found := findEntryByReference(child, searchIn, text); found != nil {
			return found
		}
	}
	return nil
}

func entryMatchesReference(entry *Entry, searchIn, text string) bool {
	switch strings.ToUpper(searchIn) {
	case "I":
		id, err := parseReferenceUUID(text)
		if err != nil {
			return false
		}
		return entry.uuid == id
	case "O":
		for _, key := range entry.attributes.CustomKeys() {
			if strings.EqualFold(entry.attributes.Value(key), text) {
				return true
			}
		}
		return false
	default:
		key := fieldKey(searchIn)
		if key == "" {
			return false
		}
		return strings.EqualFold(entry.attributes.Value(key), text)
	}
}

// parseReferenceUUID accepts both canonical and bare-hex uuid forms.
func parseReferenceUUID(text string) (uuid.UUID, error) {
	text = strings.TrimSpace(text)
	if len(text) == 32 {
		raw, err := hex.DecodeString(text)
		if err == nil {
			return uuid.FromBytes(raw)
		}
	}
	return uuid.Parse(text)
}

// ResolvedTitle returns the title with placeholders substituted.
func (e *Entry) ResolvedTitle() string {
	return e.ResolveMultiplePlaceholders(e.Title())
}

// ResolvedUsername returns the username with placeholders substituted.
func (e *Entry) ResolvedUsername() string {
	return e.ResolveMultiplePlaceholders(e.Username())
}

// ResolvedPassword returns the password with placeholders substituted.
func (e *Entry) ResolvedPassword() string {
	return e.ResolveMultiplePlaceholders(e.Password())
}

// ResolvedURL returns the URL with placeholders substituted.
func (e *Entry) ResolvedURL() string {
	return e.ResolveMultiplePlaceholders(e.URL())
}

// ResolvedNotes returns the notes with placeholders substituted.
func (e *Entry) ResolvedNotes() string {
	return e.ResolveMultiplePlaceholders(e.Notes())
}

// ResolvedAttribute resolves an arbitrary attribute by key.
func (e *Entry) ResolvedAttribute(key string) string {
	return e.ResolveMultiplePlaceholders(e.attributes.Value(key))
}
