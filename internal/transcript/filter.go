// Package transcript detects and removes speech-recognition hallucination
// artifacts. Whisper-style engines tend to fabricate text near silence or
// the end of the audio: looping phrases, duplicated segments, and sparse
// low-confidence tails. Segment-metric passes run when the engine returned
// quality metrics; a text-level repetition pass always runs.
//
// The thresholds here are tuning constants, not load-bearing precision.
package transcript

import (
	"strings"

	"github.com/openplaud/plaudsync/internal/speech"
)

const (
	// loopCompressionRatio marks the onset of a hallucination loop: the
	// first segment compressing better than this starts the discard.
	loopCompressionRatio = 5.0

	// tailLookback bounds how many trailing segments the stripping passes
	// inspect. Hallucinations cluster at the end; earlier segments are
	// left alone.
	tailLookback = 8

	// lowConfidenceLogprob drops tail segments whose average token
	// log-probability falls below it.
	lowConfidenceLogprob = -1.0

	// Speech-density rule: genuine short utterances are brief in time.
	// A short segment stretched over many seconds is fabricated filler.
	densityMaxWords       = 4
	densityMinSpanSec     = 5.0
	densityMinWordsPerSec = 0.5
)

// Tiered thresholds for the text-level repetition safety net. Short
// phrases repeat legitimately ("no no no"), so they need far more repeats
// before truncation than long ones.
const (
	shortPhraseMaxWords   = 3
	shortPhraseMinRepeats = 15

	midPhraseMaxWords   = 8
	midPhraseMinRepeats = 4

	longPhraseMaxWords   = 20
	longPhraseMinRepeats = 3
)

// CleanSegments applies the segment-metric hallucination passes and joins
// the surviving segments into a transcript.
//
// Pass order: loop truncation on the whole sequence, then the tail passes
// (duplicate run, low confidence, low speech density), each restricted to
// the final tailLookback segments.
func CleanSegments(segs []speech.Segment) string {
	kept := truncateLoop(segs)
	kept = dropTrailingDuplicates(kept)
	kept = dropLowConfidenceTail(kept)
	kept = dropSparseTail(kept)
	return joinSegments(kept)
}

// truncateLoop discards every segment from the first one whose compression
// ratio exceeds the loop threshold. If that would discard the entire
// transcript, the original is kept: an imperfect transcript outweighs an
// empty one.
func truncateLoop(segs []speech.Segment) []speech.Segment {
	for i, s := range segs {
		if s.CompressionRatio > loopCompressionRatio {
			if i == 0 {
				return segs
			}
			return segs[:i]
		}
	}
	return segs
}

// dropTrailingDuplicates removes a run of byte-identical segments at the
// end of the transcript, keeping the first occurrence. Only runs whose
// start falls inside the look-back window are considered.
func dropTrailingDuplicates(segs []speech.Segment) []speech.Segment {
	if len(segs) < 2 {
		return segs
	}

	runStart := len(segs) - 1
	for runStart > 0 && segs[runStart-1].Text == segs[len(segs)-1].Text {
		runStart--
	}
	if runStart == len(segs)-1 {
		return segs
	}
	if len(segs)-runStart > tailLookback {
		return segs
	}
	return segs[:runStart+1]
}

func dropLowConfidenceTail(segs []speech.Segment) []speech.Segment {
	dropped := 0
	for len(segs) > 0 && dropped < tailLookback {
		last := segs[len(segs)-1]
		if last.AvgLogprob >= lowConfidenceLogprob {
			break
		}
		segs = segs[:len(segs)-1]
		dropped++
	}
	return segs
}

func dropSparseTail(segs []speech.Segment) []speech.Segment {
	dropped := 0
	for len(segs) > 0 && dropped < tailLookback {
		last := segs[len(segs)-1]
		if !isSparse(last) {
			break
		}
		segs = segs[:len(segs)-1]
		dropped++
	}
	return segs
}

func isSparse(s speech.Segment) bool {
	words := len(strings.Fields(s.Text))
	span := s.End - s.Start
	if words == 0 || words > densityMaxWords || span < densityMinSpanSec {
		return false
	}
	return float64(words)/span < densityMinWordsPerSec
}

func joinSegments(segs []speech.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// TruncateRepeatedPhrases is the text-level safety net: it scans the word
// sequence for a phrase repeated consecutively enough times to count as a
// hallucination loop and, on detection, truncates everything after the
// repeated run. It runs regardless of whether segment metrics were
// available.
func TruncateRepeatedPhrases(text string) string {
	words := strings.Fields(text)
	if len(words) < shortPhraseMinRepeats {
		return text
	}

	for start := 0; start < len(words); start++ {
		maxLen := (len(words) - start) / 2
		if maxLen > longPhraseMaxWords {
			maxLen = longPhraseMaxWords
		}
		for phraseLen := 1; phraseLen <= maxLen; phraseLen++ {
			repeats := countRepeats(words, start, phraseLen)
			if repeats < minRepeatsFor(phraseLen) {
				continue
			}
			runEnd := start + repeats*phraseLen
			if runEnd == len(words) {
				return text
			}
			return strings.Join(words[:runEnd], " ")
		}
	}
	return text
}

// countRepeats counts how many times the phrase words[start:start+phraseLen]
// repeats back-to-back starting at start (including the first occurrence).
func countRepeats(words []string, start, phraseLen int) int {
	repeats := 1
	for {
		next := start + repeats*phraseLen
		if next+phraseLen > len(words) {
			break
		}
		match := true
		for i := 0; i < phraseLen; i++ {
			if words[next+i] != words[start+i] {
				match = false
				break
			}
		}
		if !match {
			break
		}
		repeats++
	}
	return repeats
}

func minRepeatsFor(phraseLen int) int {
	switch {
	case phraseLen <= shortPhraseMaxWords:
		return shortPhraseMinRepeats
	case phraseLen <= midPhraseMaxWords:
		return midPhraseMinRepeats
	default:
		return longPhraseMinRepeats
	}
}
