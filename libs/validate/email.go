// Package validate holds the deterministic input checks shared by the
// customer-facing services: email hygiene, Indian mobile numbers and
// password strength. All checks return a result struct instead of an
// error so handlers can render inline feedback.
package validate

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sort"
	"strings"
)

// EmailResult reports the outcome of an email check. Suggestions is only
// populated by SuggestEmailDomain when a likely typo was detected.
type EmailResult struct {
	Valid       bool     `json:"is_valid"`
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

var emailRE = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// Providers customers actually use; typo suggestions are ranked against these.
var commonDomains = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"aol.com",
	"icloud.com",
	"protonmail.com",
	"zoho.com",
	"live.com",
	"msn.com",
}

// Typos seen often enough in signups to correct without guessing.
var domainCorrections = map[string]string{
	"gmai.com":    "gmail.com",
	"gmial.com":   "gmail.com",
	"gmaill.com":  "gmail.com",
	"gmal.com":    "gmail.com",
	"yahooo.com":  "yahoo.com",
	"yaho.com":    "yahoo.com",
	"hotmai.com":  "hotmail.com",
	"hotmial.com": "hotmail.com",
	"outlok.com":  "outlook.com",
	"outloo.com":  "outlook.com",
}

var disposableDomains = map[string]struct{}{
	"10minutemail.com":        {},
	"10minutemail.net":        {},
	"tempmail.org":            {},
	"guerrillamail.com":       {},
	"mailinator.com":          {},
	"yopmail.com":             {},
	"temp-mail.org":           {},
	"throwaway.email":         {},
	"fakeinbox.com":           {},
	"maildrop.cc":             {},
	"sharklasers.com":         {},
	"guerrillamailblock.com":  {},
	"pokemail.net":            {},
	"spam4.me":                {},
	"bccto.me":                {},
	"chacuo.net":              {},
	"dispostable.com":         {},
	"emailsensei.com":         {},
	"etranquil.com":           {},
	"fakemail.net":            {},
	"hidemail.de":             {},
	"mytrashmail.com":         {},
	"no-spam.ws":              {},
	"noclickemail.com":        {},
	"nogmailspam.info":        {},
	"nomail.xl.cx":            {},
	"notmailinator.com":       {},
	"nowmymail.com":           {},
	"recode.me":               {},
	"recursor.net":            {},
	"rhyta.com":               {},
	"safe-mail.net":           {},
	"selfdestructingmail.com": {},
	"sendspamhere.com":        {},
	"snakemail.com":           {},
	"sogetthis.com":           {},
	"spamavert.com":           {},
	"tempalias.com":           {},
	"tempail.com":             {},
	"tempemail.com":           {},
	"tempinbox.com":           {},
	"tempmail.eu":             {},
	"tempmailer.com":          {},
	"tempmailer.de":           {},
	"tempmailaddress.com":     {},
	"tempymail.com":           {},
	"thankyou2010.com":        {},
	"trash-amil.com":          {},
	"trashmail.at":            {},
	"trashmail.com":           {},
	"trashmail.io":            {},
	"trashmail.me":            {},
	"trashmail.net":           {},
	"trashymail.com":          {},
	"trbvm.com":               {},
	"tryalert.com":            {},
	"uggsrock.com":            {},
	"wegwerfmail.de":          {},
	"wegwerfmail.net":         {},
	"wegwerfmail.org":         {},
	"wh4f.org":                {},
	"whyspam.me":              {},
	"willselfdestruct.com":    {},
	"xoxy.net":                {},
	"yogamaven.com":           {},
	"yopmail.fr":              {},
	"yopmail.net":             {},
	"zetmail.com":             {},
	"zoemail.org":             {},
}

// Mailboxes nobody reads signup mail at.
var roleLocalParts = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"postmaster":    {},
	"hostmaster":    {},
	"webmaster":     {},
	"www":           {},
	"ftp":           {},
	"mail":          {},
	"email":         {},
	"marketing":     {},
	"sales":         {},
	"support":       {},
	"help":          {},
	"info":          {},
	"contact":       {},
	"service":       {},
	"office":        {},
	"team":          {},
	"group":         {},
	"noreply":       {},
	"no-reply":      {},
	"donotreply":    {},
	"bounce":        {},
	"mailer-daemon": {},
}

// Email checks syntax only: the address must match the RFC-5322-ish pattern,
// contain no consecutive dots, not begin or end with a dot, have no dot
// touching the @, and keep the local part within 64 and the domain within
// 253 characters.
func Email(email string) EmailResult {
	addr := strings.ToLower(strings.TrimSpace(email))
	if addr == "" {
		return EmailResult{Reason: "Email is required"}
	}
	if !emailRE.MatchString(addr) {
		return EmailResult{Reason: "Invalid email format"}
	}
	if strings.Contains(addr, "..") {
		return EmailResult{Reason: "Email cannot contain consecutive dots"}
	}
	if strings.HasPrefix(addr, ".") || strings.HasSuffix(addr, ".") {
		return EmailResult{Reason: "Email cannot start or end with a dot"}
	}
	if strings.Contains(addr, "@.") || strings.Contains(addr, ".@") {
		return EmailResult{Reason: "Invalid dot placement around @"}
	}
	local, domain, _ := strings.Cut(addr, "@")
	if local == "" {
		return EmailResult{Reason: "Email local part cannot be empty"}
	}
	if len(local) > 64 {
		return EmailResult{Reason: "Email local part too long (max 64 characters)"}
	}
	if domain == "" {
		return EmailResult{Reason: "Email domain cannot be empty"}
	}
	if len(domain) > 253 {
		return EmailResult{Reason: "Email domain too long (max 253 characters)"}
	}
	return EmailResult{Valid: true}
}

// SuggestEmailDomain flags likely provider typos. Known misspellings map to
// a single correction; otherwise common domains within edit distance 2 are
// offered, closest first, capped at three. Valid=true means no typo detected.
func SuggestEmailDomain(email string) EmailResult {
	local, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok || domain == "" {
		return EmailResult{Reason: "Invalid email format"}
	}

	if fixed, known := domainCorrections[domain]; known {
		return EmailResult{
			Reason:      "Possible typo detected",
			Suggestions: []string{local + "@" + fixed},
		}
	}

	for _, cd := range commonDomains {
		if domain == cd {
			return EmailResult{Valid: true}
		}
	}

	type candidate struct {
		domain   string
		distance int
	}
	var near []candidate
	for _, cd := range commonDomains {
		if d := levenshtein(domain, cd); d > 0 && d <= 2 {
			near = append(near, candidate{cd, d})
		}
	}
	if len(near) == 0 {
		return EmailResult{Valid: true}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].distance < near[j].distance })
	if len(near) > 3 {
		near = near[:3]
	}
	suggestions := make([]string, 0, len(near))
	for _, c := range near {
		suggestions = append(suggestions, local+"@"+c.domain)
	}
	return EmailResult{Reason: "Did you mean one of these?", Suggestions: suggestions}
}

// DisposableEmail rejects throwaway inboxes so booking confirmations do not
// bounce a day later.
func DisposableEmail(email string) EmailResult {
	_, domain, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if _, blocked := disposableDomains[domain]; blocked {
		return EmailResult{Reason: "Disposable email addresses are not allowed. Please use a permanent email address."}
	}
	return EmailResult{Valid: true}
}

// RoleEmail rejects shared mailboxes like info@ or support@.
func RoleEmail(email string) EmailResult {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if _, blocked := roleLocalParts[local]; blocked {
		return EmailResult{Reason: "Role-based email addresses are not allowed. Please use a personal email address."}
	}
	return EmailResult{Valid: true}
}

// EmailDomainMX verifies the domain can receive mail. Lookup failures other
// than "no such host" pass the address through: a DNS outage on our side must
// not block signups.
func EmailDomainMX(ctx context.Context, email string) EmailResult {
	_, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || domain == "" {
		return EmailResult{Reason: "Invalid email format"}
	}
	mx, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return EmailResult{Reason: "Email domain does not exist or cannot receive emails"}
		}
		return EmailResult{Valid: true}
	}
	if len(mx) == 0 {
		return EmailResult{Reason: "Email domain does not exist or cannot receive emails"}
	}
	return EmailResult{Valid: true}
}

// CheckEmail runs the full pipeline: syntax, typo suggestions, disposable
// and role blocklists, then the MX lookup.
func CheckEmail(ctx context.Context, email string) EmailResult {
	if res := Email(email); !res.Valid {
		return res
	}
	if res := SuggestEmailDomain(email); !res.Valid && len(res.Suggestions) > 0 {
		return res
	}
	if res := DisposableEmail(email); !res.Valid {
		return res
	}
	if res := RoleEmail(email); !res.Valid {
		return res
	}
	return EmailDomainMX(ctx, email)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j-1]+cost, cur[j-1]+1, prev[j]+1)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
