// Package domain models the climate and health records behind the Eastern
// Africa climate–health dashboard and the pure transformations applied to
// them between fetching and presentation.
//
// # Data Sources
//
// Climate: NASA POWER point API (https://power.larc.nasa.gov/). Two
// parameters are read per region centroid:
//
//	T2M          air temperature at 2 m, °C
//	PRECTOTCORR  bias-corrected precipitation, mm/day (older responses: PRECTOT)
//
// Missing values carry the POWER fill value -999 and become nil fields.
// Monthly responses include a 13th "month" (YYYY13) holding the annual mean;
// it is not a period and is dropped by the adapter.
//
// Precipitation (optional): CHIRPS daily rainfall, mm/day, averaged over the
// region polygon by the ClimateSERV job API. When present it replaces the
// POWER rainfall for the same period.
//
// Health: WHO Global Health Observatory OData API
// (https://ghoapi.azureedge.net/api/). Values are reported per country
// (SpatialDim, ISO3) and year (TimeDim). An annual value covers every day
// and month of its year; see [HealthRecord.Coverage].
//
// # Periods
//
// All dates are UTC midnight. A [Resolution] maps any date to the start of
// its period:
//
//	daily    2020-03-17 → 2020-03-17
//	monthly  2020-03-17 → 2020-03-01
//	annual   2020-03-17 → 2020-01-01
//
// Climate records are averaged into the view resolution by
// [AggregateClimate] before merging, so each (region, period) key appears
// once.
//
// # Merge Policy
//
// Climate periods drive the table. A health record matches a row when the
// row's date falls inside the record's coverage period; the finest coverage
// wins. Rows without a match are either dropped ([MergeInner]) or
// forward-filled then back-filled from neighbouring rows of the same region
// ([MergeFill]), with [MergedRow.CaseCountFilled] set on filled cells.
//
// # CSV Export
//
// [WriteCSV] and [ReadCSV] are exact inverses: floats use the shortest
// representation that round-trips and nil fields are empty cells.
package domain
