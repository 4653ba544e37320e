// Package discovery looks up a novel's publication metadata on Vietnamese
// web-novel sites by driving a headless Chromium through Google search.
//
// A search runs in three steps:
//
//  1. Submit "<title> truyện" to Google and extract result links from the
//     captured SERP HTML.
//  2. Score every link against the title (domain trust, token overlap,
//     off-topic penalties, URL slug bonus) and keep those above the match
//     threshold.
//  3. Fetch the best candidates in order and parse title, author, status and
//     the highest chapter number from the page text.
//
// The browser session is recycled after a fixed number of searches, on a
// lost connection, and whenever Google serves a CAPTCHA or rate-limit page.
// A CAPTCHA surfaces as ErrBlocked and is never retried here; callers are
// expected to back off for the whole run.
//
// Browser is the seam for tests: the engine never touches rod types directly.
package discovery
