// Package main hosts the epubsort CLI.
//
// `epubsort run` classifies and organizes the EPUBs in the input folder and
// writes the xlsx reports. `config` scaffolds and checks configuration, and
// `state` inspects the resume ledger and clears permanent corrupted marks.
// Heavy lifting lives in internal/pipeline; commands only wire and render.
package main
