// Package audio implements the codec and resampling primitives for the
// telephony media path: G.711 mu-law companding between the 8 kHz wire
// format and 16-bit linear PCM, linear resampling between the wire rate
// and the speech-service rates, and RMS energy used for voice activity
// detection. All functions are stateless and safe for concurrent use
// across sessions.
package audio
