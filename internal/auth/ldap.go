package auth

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/config"
)

type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type dialedConn struct {
	conn *ldap.Conn
}

func (c dialedConn) Bind(username, password string) error { return c.conn.Bind(username, password) }
func (c dialedConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.conn.Search(req)
}
func (c dialedConn) Close() { c.conn.Close() }

// LDAPVerifier checks passwords against a directory: bind with the service
// account, find the user's DN, then bind as that DN.
type LDAPVerifier struct {
	cfg          config.LDAP
	bindPassword string
	dial         func(url string) (ldapConn, error)
}

func NewLDAPVerifier(cfg config.LDAP, bindPassword string) *LDAPVerifier {
	return &LDAPVerifier{
		cfg:          cfg,
		bindPassword: bindPassword,
		dial: func(url string) (ldapConn, error) {
			conn, err := ldap.DialURL(url)
			if err != nil {
				return nil, err
			}
			return dialedConn{conn: conn}, nil
		},
	}
}

func (v *LDAPVerifier) Verify(username, password string) error {
	if password == "" {
		return apperr.Authentication("invalid credentials")
	}

	conn, err := v.dial(v.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if v.cfg.BindDN != "" {
		if err := conn.Bind(v.cfg.BindDN, v.bindPassword); err != nil {
			return fmt.Errorf("LDAP service bind failed: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		v.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		fmt.Sprintf("(%s=%s)", v.cfg.UserAttribute, ldap.EscapeFilter(username)),
		[]string{"dn"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return apperr.Authentication("invalid credentials")
	}

	if err := conn.Bind(result.Entries[0].DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return apperr.Authentication("invalid credentials")
		}
		return fmt.Errorf("LDAP user bind failed: %w", err)
	}
	return nil
}
