package summary

// GroupByPeriod partitions records into a year -> month index using
// the record's creation timestamp interpreted in UTC.
//
// Records with a missing or unparsable timestamp are dropped silently:
// a lossy-but-non-fatal policy, since a record the store could not
// timestamp cannot be attributed to any period. Within a month,
// records stay in fetch order; month order within a year is
// first-seen order.
func GroupByPeriod(records []Record) PeriodIndex {
	index := make(PeriodIndex)
	for _, rec := range records {
		t, ok := ParseTimestamp(rec.CreatedDate)
		if !ok {
			continue
		}
		year := t.Year()
		month := t.Month().String()

		groups := index[year]
		placed := false
		for i := range groups {
			if groups[i].Month == month {
				groups[i].Records = append(groups[i].Records, rec)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, MonthGroup{Month: month, Records: []Record{rec}})
		}
		index[year] = groups
	}
	return index
}
