// Package testsupport holds helpers shared by package tests: temp-dir
// configs, synthetic EPUB containers and store openers.
package testsupport
