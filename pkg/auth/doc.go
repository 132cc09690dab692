// Package auth stores named labs.google cookie sessions.
//
// Sessions are kept in the system keychain when one is available, otherwise
// in an AES-GCM encrypted file whose key is derived with PBKDF2. A session
// can also come from FXARCHIVE_COOKIE. The download pipeline only sees the
// header bundle returned by Session.Headers.
package auth
