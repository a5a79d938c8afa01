package icpcert

// SelectEntry picks the entity certificate among decoded entries: the only
// entry when there is one, otherwise the first entry (in decoder order) whose
// CNPJ resolves, falling back to the first entry.
func SelectEntry(entries []Entry) (Entry, error) {
	switch len(entries) {
	case 0:
		return Entry{}, &DecodeError{Kind: NoCertificateFound}
	case 1:
		return entries[0], nil
	}
	for _, e := range entries {
		if _, ok := ExtractCNPJ(e.Cert); ok {
			return e, nil
		}
	}
	return entries[0], nil
}
