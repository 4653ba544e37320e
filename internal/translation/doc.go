// Package translation decides whether an EPUB is a machine conversion or a
// human translation.
//
// The decision order is fixed:
//
//  1. Build the text from the lowercased filename and embedded title.
//  2. Match the Convert and Dịch keyword sets.
//  3. Both sets matched: unknown, final. The AI is never consulted.
//  4. Exactly one set matched: return it at 0.85.
//  5. Nothing matched (confidence 0.2): ask the AI, but only with an
//     AICapability minted by Policy.Authorize.
//  6. Adopt the AI answer only when it is strictly more confident.
//  7. Canonicalize the label to machine_convert, human_translation or unknown.
//
// AI failures never fail the decision; the heuristic result is returned.
package translation
