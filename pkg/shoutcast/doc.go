// Package shoutcast reads ICY/Shoutcast streams and decodes their in-band
// metadata.
//
// A server that honors the Icy-MetaData request header inserts a metadata
// block after every icy-metaint bytes of audio. Each block starts with a
// length byte counting 16 byte units, followed by NUL padded text such as
// StreamTitle='Artist - Title';StreamUrl='';. Decoder tracks that cycle
// across reads of any size, and Stream drives it from an HTTP response:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Audio bytes are discarded; only metadata records are surfaced
//   - No client timeout on the stream so long-running listeners are supported
package shoutcast
